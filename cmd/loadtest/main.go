// Command loadtest fires concurrent purchase requests at a running
// server to exercise the last-unit race: with stock S and N > S
// buyers, exactly S purchases must succeed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	ticketID := flag.String("ticket", "tkt-loadtest", "ticket id to purchase")
	requests := flag.Int("n", 50, "number of concurrent purchase requests")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var success, soldOut, failed atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()

	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			payload := map[string]interface{}{
				"request_id": fmt.Sprintf("load-%d-%d", start.UnixNano(), id),
				"ticket_id":  *ticketID,
				"form_data": map[string]string{
					"name":  fmt.Sprintf("Load Tester %d", id),
					"email": fmt.Sprintf("load%d@example.com", id),
					"phone": fmt.Sprintf("+62812%08d", id),
					"nik":   fmt.Sprintf("%016d", id),
				},
			}
			body, _ := json.Marshal(payload)

			resp, err := client.Post(*baseURL+"/v1/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				failed.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				success.Add(1)
			case http.StatusGone:
				soldOut.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	log.Printf("requests=%d success=%d sold_out=%d failed=%d elapsed=%s",
		*requests, success.Load(), soldOut.Load(), failed.Load(), elapsed)
}
