// Command ecogridctl inspects an EcoGrid game backend from the terminal: the
// normalized location catalog, enriched site details, the building catalog,
// a player's cart and the projected climate simulation.
//
// It reads the same environment as the ecogrid daemon (API_BASE_URL,
// API_SESSION_ID, GAME_USERNAME, ...); flags override the player and output
// format.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
