// ucpclient is a CLI tool for exercising checkout flows end to end.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	ucpclient create -server URL -product ID [-qty N] [-country CC]
//	ucpclient get -server URL -id <checkout-id>
//	ucpclient update -server URL -id <checkout-id> [-email ADDR] [-dob YYYY-MM-DD]
//	ucpclient complete -server URL -id <checkout-id> [-token TOKEN]
//	ucpclient cancel -server URL -id <checkout-id>
//
// Example flow:
//
//	ID=$(ucpclient create -server http://localhost:8080 -product glenmor-12 -q)
//	ucpclient update -server http://localhost:8080 -id "$ID" -email buyer@example.com -dob 1990-05-01
//	ucpclient complete -server http://localhost:8080 -id "$ID"
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		runCreate(args)
	case "get":
		runGet(args)
	case "update":
		runUpdate(args)
	case "complete":
		runComplete(args)
	case "cancel":
		runCancel(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ucpclient - UCP checkout flow test tool

Usage:
  ucpclient <command> [options]

Commands:
  create    Create a new checkout with a line item
  get       Get current checkout state
  update    Update checkout (buyer email, date of birth, quantity)
  complete  Complete checkout with payment
  cancel    Cancel a checkout session

Example flow:
  ID=$(ucpclient create -server http://localhost:8080 -product glenmor-12 -q)
  ucpclient update -server http://localhost:8080 -id "$ID" -email buyer@example.com -dob 1990-05-01
  ucpclient complete -server http://localhost:8080 -id "$ID"

Run 'ucpclient <command> -h' for command-specific options.
`)
}

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "checkout service URL")
	product := fs.String("product", "", "product ID (required)")
	qty := fs.Int("qty", 1, "quantity")
	country := fs.String("country", "", "buyer country code for market resolution")
	email := fs.String("email", "", "buyer email")
	quiet := fs.Bool("q", false, "print only the checkout ID")
	fs.Parse(args)

	if *product == "" {
		fmt.Fprintln(os.Stderr, "create: -product is required")
		os.Exit(1)
	}

	body := map[string]any{
		"line_items": []map[string]any{
			{"item": map[string]any{"id": *product}, "quantity": *qty},
		},
	}
	if *email != "" {
		body["buyer"] = map[string]any{"email": *email}
	}
	if *country != "" {
		body["context"] = map[string]any{"geo": map[string]any{"country": *country}}
	}

	result := doRequest(http.MethodPost, *server+"/checkout-sessions", body)
	if *quiet {
		fmt.Println(result["id"])
		return
	}
	printJSON(result)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "checkout service URL")
	id := fs.String("id", "", "checkout ID (required)")
	fs.Parse(args)
	requireID(*id)

	printJSON(doRequest(http.MethodGet, *server+"/checkout-sessions/"+*id, nil))
}

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "checkout service URL")
	id := fs.String("id", "", "checkout ID (required)")
	email := fs.String("email", "", "buyer email")
	dob := fs.String("dob", "", "buyer date of birth (YYYY-MM-DD)")
	country := fs.String("country", "", "buyer country code")
	fs.Parse(args)
	requireID(*id)

	body := map[string]any{}
	buyer := map[string]any{}
	if *email != "" {
		buyer["email"] = *email
	}
	if *dob != "" {
		buyer["consent"] = map[string]any{"date_of_birth": *dob}
	}
	if len(buyer) > 0 {
		body["buyer"] = buyer
	}
	if *country != "" {
		body["context"] = map[string]any{"geo": map[string]any{"country": *country}}
	}

	printJSON(doRequest(http.MethodPut, *server+"/checkout-sessions/"+*id, body))
}

func runComplete(args []string) {
	fs := flag.NewFlagSet("complete", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "checkout service URL")
	id := fs.String("id", "", "checkout ID (required)")
	token := fs.String("token", "tok_test", "payment token")
	fs.Parse(args)
	requireID(*id)

	body := map[string]any{
		"payment": map[string]any{
			"instruments": []map[string]any{
				{
					"id":         "instr_1",
					"handler_id": "dev.ucp.payment.simulated",
					"type":       "card",
					"selected":   true,
					"credential": map[string]any{"type": "token", "token": *token},
				},
			},
		},
	}

	printJSON(doRequest(http.MethodPost, *server+"/checkout-sessions/"+*id+"/complete", body))
}

func runCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "checkout service URL")
	id := fs.String("id", "", "checkout ID (required)")
	fs.Parse(args)
	requireID(*id)

	printJSON(doRequest(http.MethodPost, *server+"/checkout-sessions/"+*id+"/cancel", nil))
}

func requireID(id string) {
	if id == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(1)
	}
}

// doRequest sends the request and decodes the JSON response. Non-2xx
// responses print the error body and exit non-zero.
func doRequest(method, url string, body any) map[string]any {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fatal("encoding request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		fatal("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal("reading response: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		fatal("invalid response JSON: %v\n%s", err, data)
	}

	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "HTTP %d\n", resp.StatusCode)
		printJSONTo(os.Stderr, result)
		os.Exit(1)
	}
	return result
}

func printJSON(v any) {
	printJSONTo(os.Stdout, v)
}

func printJSONTo(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
