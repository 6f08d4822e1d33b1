// Package main is a demo workload: it feeds random values into a sketch
// and prints the analyze report against the known ground truth.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log"

	"github.com/fidde/streamcount/pkg/hyperloglog"
)

func main() {
	count := flag.Int("n", 1_000_000, "number of random values to generate")
	buckets := flag.Int("buckets", 512, "sketch bucket count (power of two)")
	flag.Parse()

	hll, err := hyperloglog.New(*buckets)
	if err != nil {
		log.Fatalf("Creating sketch: %v", err)
	}

	log.Printf("Adding %d random 32-byte values into %d buckets...", *count, *buckets)

	buf := make([]byte, 32)
	progressEvery := *count / 10
	if progressEvery == 0 {
		progressEvery = 1
	}

	for i := 0; i < *count; i++ {
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("Generating random data: %v", err)
		}
		hll.Add(hex.EncodeToString(buf))

		if (i+1)%progressEvery == 0 {
			log.Printf("  %d / %d", i+1, *count)
		}
	}

	report := hll.Analyze()
	log.Printf("Buckets:    %d", report.Buckets)
	log.Printf("Alpha:      %.8f", report.Alpha)
	log.Printf("Estimate:   %d", report.Estimate)
	log.Printf("Actual:     %d", *count)
	log.Printf("Error:      %+.2f%%", report.ErrorPercent(uint64(*count)))
}
