// Build a config.json from a PEM certificate and private key pair.
//
// If the bundle ID is not given, the tool tries to recover it from the
// certificate file itself, but this is only a best-effort heuristic:
// always double check the bundle ID in the generated file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/silvadev/apns"
)

func main() {
	certFile := flag.String("cert", "cert.pem", "certificate file name")
	keyFile := flag.String("key", "key.pem", "private key file name")
	sandbox := flag.Bool("sandbox", true, "sandbox mode")
	bundleID := flag.String("bundle", "", "bundle id (if empty, tries to find it in the certificate file)")
	outputFile := flag.String("output", "config.json", "output filename")
	flag.Parse()

	data, err := apns.CreateConfig(*bundleID, *certFile, *keyFile, *sandbox)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputFile, data, 0600); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Println("Created:", *outputFile)
}
