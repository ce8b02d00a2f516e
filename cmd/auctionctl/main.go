// Command auctionctl runs auction operations against a local state file.
// Every command loads the file, applies one request and writes the file back,
// printing the response as JSON.
//
// Usage:
//
//	auctionctl --as alice asset create "Blue Vase"
//	auctionctl --as alice auction start <asset-id> --duration 24h --base-price 100
//	auctionctl --as bob account deposit 500
//	auctionctl --as bob bid place <auction-id> 150
//	auctionctl --at 2026-01-02T00:00:00Z auction close <auction-id>
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
