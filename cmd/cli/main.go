package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	token := os.Getenv("API_TOKEN")
	if token == "" {
		fmt.Println("Set API_TOKEN to your organization's API token.")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Service name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("A name is required.")
		return
	}

	fmt.Print("URL to monitor (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	body, _ := json.Marshal(map[string]string{"name": name, "url": raw})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/services", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var svc struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&svc)
		fmt.Println("Added! Service id:", svc.ID)
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
