// Command bench_throughput drives sustained UDP query load at a running
// authdnsd instance to sanity-check query throughput.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dnsscience/authdnsd/internal/packet"
)

var (
	target   = flag.String("target", "127.0.0.1:12312", "DNS server address")
	workers  = flag.Int("workers", 10, "Number of concurrent workers")
	domain   = flag.String("domain", "example.com", "Domain to query")
	duration = flag.Duration("duration", 10*time.Second, "Test duration")
)

func main() {
	flag.Parse()

	log.Printf("Starting benchmark against %s with %d workers for %v", *target, *workers, *duration)

	var count uint64
	var errors uint64
	start := time.Now()
	done := make(chan struct{})

	// Pre-build the query once to avoid re-encoding it on every send.
	reqBytes := buildQuery(0x1234, *domain, packet.TypeA)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := net.Dial("udp", *target)
			if err != nil {
				log.Printf("Dial error: %v", err)
				return
			}
			defer conn.Close()

			buf := make([]byte, 512)

			for {
				select {
				case <-done:
					return
				default:
					if _, err := conn.Write(reqBytes); err != nil {
						atomic.AddUint64(&errors, 1)
						continue
					}

					conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
					if _, err := conn.Read(buf); err != nil {
						atomic.AddUint64(&errors, 1)
						continue
					}

					atomic.AddUint64(&count, 1)
				}
			}
		}()
	}

	time.Sleep(*duration)
	close(done)
	wg.Wait()

	totalTime := time.Since(start)
	qps := float64(count) / totalTime.Seconds()

	fmt.Printf("\n--- Results ---\n")
	fmt.Printf("Total Requests: %d\n", count)
	fmt.Printf("Total Errors:   %d\n", errors)
	fmt.Printf("Duration:       %.2fs\n", totalTime.Seconds())
	fmt.Printf("QPS:            %.2f\n", qps)
}

// buildQuery hand-encodes a single-question query datagram; the
// benchmark has no answer to build from, so it talks wire format
// directly rather than pulling in the server's response builder.
func buildQuery(id uint16, name string, qtype uint16) []byte {
	buf := []byte{
		byte(id >> 8), byte(id),
		0x01, 0x00, // RD=1
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}

	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			label := name[start:i]
			buf = append(buf, byte(len(label)))
			buf = append(buf, label...)
			start = i + 1
		}
	}
	buf = append(buf, 0x00)
	buf = append(buf, byte(qtype>>8), byte(qtype))
	buf = append(buf, 0x00, 0x01) // class IN
	return buf
}
