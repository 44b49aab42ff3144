package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/saturnino-fabrica-de-software/guardian/internal/api/middleware"
)

// genkey prints a new operator API key for API_KEYS and the id it is logged under.
func main() {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	key := "grd_" + hex.EncodeToString(b)
	fmt.Printf("KEY=%s\nKEY_ID=%s\n", key, middleware.KeyID(key))
}
