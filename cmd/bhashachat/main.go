package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type options struct {
	baseURL        string
	conversationID string
	assessFirst    bool
	timeout        time.Duration
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID  string `json:"conversation_id"`
	Corrected       string `json:"corrected"`
	Explanation     string `json:"explanation"`
	Reply           string `json:"reply"`
	CorrectionsMade bool   `json:"corrections_made"`
	Proficiency     struct {
		Level string `json:"level"`
	} `json:"proficiency"`
}

type assessResponse struct {
	ConversationID string `json:"conversation_id"`
	Level          string `json:"level"`
}

type statsResponse struct {
	Turns           int64            `json:"turns"`
	CorrectionsMade int64            `json:"corrections_made"`
	AccuracyRate    float64          `json:"accuracy_rate"`
	DurationMinutes float64          `json:"duration_minutes"`
	Level           string           `json:"level"`
	MistakesByType  map[string]int64 `json:"mistakes_by_type"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "bhashachat: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var cfg options
	var timeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "BhashaVox base URL")
	flag.StringVar(&cfg.conversationID, "conversation", "", "resume an existing conversation id")
	flag.BoolVar(&cfg.assessFirst, "assess", false, "assess proficiency level from the first message")
	flag.IntVar(&timeoutMS, "timeout-ms", 120000, "per-request timeout in milliseconds")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	cfg.timeout = time.Duration(timeoutMS) * time.Millisecond
	return cfg
}

func run(cfg options) error {
	client := &http.Client{Timeout: cfg.timeout}

	fmt.Println("BhashaVox English coach. Type a message, or: stats, reset, quit")
	if cfg.conversationID != "" {
		fmt.Printf("resuming conversation %s\n", cfg.conversationID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	assessed := !cfg.assessFirst
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit":
			return nil
		case "stats":
			if err := printStats(client, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "stats: %v\n", err)
			}
			continue
		case "reset":
			if err := doReset(client, &cfg); err != nil {
				fmt.Fprintf(os.Stderr, "reset: %v\n", err)
			}
			continue
		}

		if !assessed {
			assessed = true
			var assess assessResponse
			err := postJSON(client, cfg.baseURL+"/v1/assess-level",
				chatRequest{ConversationID: cfg.conversationID, Message: line}, &assess)
			if err != nil {
				fmt.Fprintf(os.Stderr, "assess: %v\n", err)
			} else {
				cfg.conversationID = assess.ConversationID
				fmt.Printf("assessed level: %s\n", assess.Level)
			}
		}

		var res chatResponse
		err := postJSON(client, cfg.baseURL+"/v1/chat",
			chatRequest{ConversationID: cfg.conversationID, Message: line}, &res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat: %v\n", err)
			continue
		}
		cfg.conversationID = res.ConversationID

		if res.CorrectionsMade && res.Corrected != "" {
			fmt.Printf("  corrected: %s\n", res.Corrected)
		}
		if res.Explanation != "" {
			fmt.Printf("  tip: %s\n", res.Explanation)
		}
		fmt.Printf("coach> %s\n", res.Reply)
	}
}

func printStats(client *http.Client, cfg options) error {
	if cfg.conversationID == "" {
		return fmt.Errorf("no conversation yet")
	}
	res, err := client.Get(cfg.baseURL + "/v1/conversations/" + cfg.conversationID + "/stats")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	var stats statsResponse
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		return err
	}

	fmt.Printf("turns: %d  corrections: %d  accuracy: %.1f%%  level: %s  duration: %.1f min\n",
		stats.Turns, stats.CorrectionsMade, stats.AccuracyRate, stats.Level, stats.DurationMinutes)
	for category, count := range stats.MistakesByType {
		fmt.Printf("  %s: %d\n", category, count)
	}
	return nil
}

func doReset(client *http.Client, cfg *options) error {
	if cfg.conversationID == "" {
		return fmt.Errorf("no conversation yet")
	}
	res, err := client.Post(cfg.baseURL+"/v1/conversations/"+cfg.conversationID+"/reset", "application/json", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	fmt.Println("conversation reset")
	cfg.conversationID = ""
	return nil
}

func postJSON(client *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	res, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return responseError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func responseError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var errRes errorResponse
	if json.Unmarshal(data, &errRes) == nil && errRes.Error != "" {
		return fmt.Errorf("%s (%s)", errRes.Error, errRes.Code)
	}
	return fmt.Errorf("unexpected status %d", res.StatusCode)
}
