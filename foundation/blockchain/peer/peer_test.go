package peer_test

import (
	"fmt"
	"testing"

	"github.com/ekehi/blockchain/foundation/blockchain/peer"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_AdmissionRules(t *testing.T) {
	type table struct {
		name string
		url  string
		ok   bool
	}

	tt := []table{
		{name: "valid remote", url: "http://node-two.example.com:3000", ok: true},
		{name: "own url", url: "http://node-one.example.com:3000", ok: false},
		{name: "own url trailing slash", url: "http://node-one.example.com:3000/", ok: false},
		{name: "loopback localhost", url: "http://localhost:5000", ok: false},
		{name: "loopback 127", url: "http://127.0.0.1:5000", ok: false},
		{name: "duplicate", url: "http://node-two.example.com:3000", ok: false},
		{name: "empty", url: "", ok: false},
	}

	t.Log("Given the need to control peer admission.")
	{
		ps := peer.NewSet("http://node-one.example.com:3000", 25, nil)

		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := ps.Add(tst.url)

				if tst.ok && err != nil {
					t.Errorf("\t%s\tTest %d:\tShould admit %q: %v", failed, testID, tst.url, err)
					return
				}
				if !tst.ok && err == nil {
					t.Errorf("\t%s\tTest %d:\tShould reject %q.", failed, testID, tst.url)
					return
				}
				t.Logf("\t%s\tTest %d:\tShould handle %q correctly.", success, testID, tst.url)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Capacity(t *testing.T) {
	t.Log("Given the need to cap the peer set.")
	{
		ps := peer.NewSet("http://self.example.com", 3, nil)

		for i := 0; i < 3; i++ {
			if err := ps.Add(fmt.Sprintf("http://node-%d.example.com", i)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould admit peer %d: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tTest 0:\tShould admit peers up to capacity.", success)

		if err := ps.Add("http://node-overflow.example.com"); err == nil {
			t.Errorf("\t%s\tTest 0:\tShould reject beyond capacity.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould reject beyond capacity.", success)
		}
	}
}

func Test_HealthEviction(t *testing.T) {
	t.Log("Given the need to evict repeatedly unhealthy peers.")
	{
		ps := peer.NewSet("http://self.example.com", 25, nil)
		const url = "http://flaky.example.com"

		if err := ps.Add(url); err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould admit the peer: %v", failed, err)
		}

		if evicted := ps.MarkUnhealthy(url); evicted {
			t.Fatalf("\t%s\tTest 0:\tShould not evict on the first failure.", failed)
		}
		if evicted := ps.MarkUnhealthy(url); evicted {
			t.Fatalf("\t%s\tTest 0:\tShould not evict on the second failure.", failed)
		}
		t.Logf("\t%s\tTest 0:\tShould tolerate two failures.", success)

		if evicted := ps.MarkUnhealthy(url); !evicted {
			t.Errorf("\t%s\tTest 0:\tShould evict on the third failure.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould evict on the third failure.", success)
		}

		if ps.Count() != 0 {
			t.Errorf("\t%s\tTest 0:\tShould remove the evicted peer.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould remove the evicted peer.", success)
		}
	}
}

func Test_HealthRecovery(t *testing.T) {
	t.Log("Given the need to reset the failure count on recovery.")
	{
		ps := peer.NewSet("http://self.example.com", 25, nil)
		const url = "http://recovering.example.com"

		if err := ps.Add(url); err != nil {
			t.Fatalf("\t%s\tTest 0:\tShould admit the peer: %v", failed, err)
		}

		ps.MarkUnhealthy(url)
		ps.MarkUnhealthy(url)
		ps.MarkHealthy(url, 7, 2)

		// After recovery the failure run starts over.
		ps.MarkUnhealthy(url)
		ps.MarkUnhealthy(url)

		if ps.Count() != 1 {
			t.Errorf("\t%s\tTest 0:\tShould keep the recovered peer.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould keep the recovered peer.", success)
		}

		peers := ps.Copy()
		if len(peers) != 1 || peers[0].Height != 7 || peers[0].Difficulty != 2 {
			t.Errorf("\t%s\tTest 0:\tShould record the observed height and difficulty.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould record the observed height and difficulty.", success)
		}
	}
}

func Test_PruneInvalid(t *testing.T) {
	t.Log("Given the need to prune restored peer lists.")
	{
		ps := peer.NewSet("http://self.example.com", 25, nil)

		// Restore applies the admission rules, so a loopback entry from a
		// persisted list never makes it in.
		ps.Restore([]peer.Peer{
			{URL: "http://127.0.0.1:5000"},
			{URL: "http://remote.example.com:3000", Height: 9},
		})

		if ps.Count() != 1 {
			t.Fatalf("\t%s\tTest 0:\tShould only restore the remote peer, got %d.", failed, ps.Count())
		}
		t.Logf("\t%s\tTest 0:\tShould only restore the remote peer.", success)

		peers := ps.Copy()
		if peers[0].URL != "http://remote.example.com:3000" || peers[0].Height != 9 {
			t.Errorf("\t%s\tTest 0:\tShould keep the restored observations.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould keep the restored observations.", success)
		}

		if removed := ps.PruneInvalid(); len(removed) != 0 {
			t.Errorf("\t%s\tTest 0:\tShould have nothing left to prune.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould have nothing left to prune.", success)
		}
	}
}
