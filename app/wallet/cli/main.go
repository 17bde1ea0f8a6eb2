package main

import "github.com/ekehi/blockchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
