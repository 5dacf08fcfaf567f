// Command invoice-codec encodes and decodes invoice references from the
// command line. Useful for support: paste the reference from a customer's
// landing page URL and get the invoice code back.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/geraiakik/checkout-gateway/internal/invoice"
)

func main() {
	var (
		keyHex string
		decode bool
	)

	flag.StringVar(&keyHex, "key", os.Getenv("GERAI_INVOICE_KEY"), "hex-encoded AES key (defaults to GERAI_INVOICE_KEY)")
	flag.BoolVar(&decode, "decode", false, "decode a reference instead of encoding a code")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-decode] [-key HEX] <value>\n", os.Args[0])
		os.Exit(2)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) == 0 {
		slog.Error("a hex-encoded key is required: set -key or GERAI_INVOICE_KEY")
		os.Exit(1)
	}

	codec, err := invoice.New(key)
	if err != nil {
		slog.Error("create codec", slog.String("error", err.Error()))
		os.Exit(1)
	}

	value := flag.Arg(0)
	if decode {
		code := codec.Decode(value)
		if code == "" {
			slog.Error("reference did not decode; wrong key or tampered value")
			os.Exit(1)
		}
		fmt.Println(code)
		return
	}
	token, err := codec.Encode(value)
	if err != nil {
		slog.Error("encode invoice code", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Println(token)
}
