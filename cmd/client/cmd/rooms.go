package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagAPI   string
	flagLimit int
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List recent meetings on the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRooms()
	},
}

func init() {
	roomsCmd.Flags().StringVar(&flagAPI, "api", "http://localhost:8080", "gateway API base URL")
	roomsCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of meetings to list")
	rootCmd.AddCommand(roomsCmd)
}

func listRooms() error {
	client := &http.Client{Timeout: 10 * time.Second}

	url := fmt.Sprintf("%s/api/meetings/recent?limit=%d", flagAPI, flagLimit)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway answered %s", resp.Status)
	}

	var body struct {
		Meetings []struct {
			Code      string    `json:"code"`
			Title     string    `json:"title"`
			StartedAt time.Time `json:"started_at"`
			IsEnded   bool      `json:"is_ended"`
		} `json:"meetings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(body.Meetings) == 0 {
		fmt.Println("No meetings yet.")
		return nil
	}
	for _, m := range body.Meetings {
		status := "live"
		if m.IsEnded {
			status = "ended"
		}
		fmt.Printf("%s  %-30s %s  %s\n",
			m.Code, m.Title, m.StartedAt.Local().Format("Jan 2 15:04"), status)
	}
	return nil
}
