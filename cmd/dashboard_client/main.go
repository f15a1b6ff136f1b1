package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const subscribeTimeout = 5 * time.Second

type point struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}

type dashboardView struct {
	Status   string `json:"status"`
	Header   string `json:"header"`
	Location *struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current *struct {
		Temperature     float64 `json:"temperature"`
		Description     string  `json:"description"`
		HumidityPercent int     `json:"humidityPercent"`
		WindSpeed       float64 `json:"windSpeed"`
		FeelsLike       float64 `json:"feelsLike"`
	} `json:"current"`
	Hourly []point `json:"hourly"`
	Daily  []point `json:"daily"`
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "Dashboard server base URL")
	city := flag.String("city", "", "Search for this city")
	lat := flag.Float64("lat", 0, "Latitude to locate at (with -lon)")
	lon := flag.Float64("lon", 0, "Longitude to locate at (with -lat)")
	locate := flag.Bool("locate", false, "Ask the server to locate the user")
	watch := flag.Duration("watch", 0, "Print notifications for this long before exiting")
	flag.Parse()

	fmt.Println("Weather Dashboard Client")
	fmt.Println("========================")

	client := resty.New().SetBaseURL(*baseURL).SetTimeout(30 * time.Second)

	if *watch > 0 {
		ready := make(chan struct{})
		go watchNotifications(*baseURL, *watch, ready)
		select {
		case <-ready:
		case <-time.After(subscribeTimeout):
			fmt.Println("Notification stream not connected, continuing without it")
		}
	}

	var (
		resp *resty.Response
		err  error
	)
	req := client.R().SetHeader("Content-Type", "application/json")
	switch {
	case *city != "":
		fmt.Printf("Searching for %s...\n", *city)
		resp, err = req.SetBody(map[string]string{"city": *city}).Post("/api/dashboard/search")
	case flagSet("lat") && flagSet("lon"):
		fmt.Printf("Locating at %.4f, %.4f...\n", *lat, *lon)
		resp, err = req.SetBody(map[string]float64{"latitude": *lat, "longitude": *lon}).Post("/api/dashboard/locate")
	case *locate:
		fmt.Println("Asking the server to locate us...")
		resp, err = req.Post("/api/dashboard/locate")
	default:
		resp, err = client.R().Get("/api/dashboard")
	}
	if err != nil {
		fmt.Printf("Error contacting dashboard: %v\n", err)
		os.Exit(1)
	}
	if !resp.IsSuccess() {
		fmt.Printf("Dashboard answered %s: %s\n", resp.Status(), strings.TrimSpace(string(resp.Body())))
	} else {
		var view dashboardView
		if err := json.Unmarshal(resp.Body(), &view); err != nil {
			fmt.Printf("Error parsing dashboard: %v\n", err)
			os.Exit(1)
		}
		printDashboard(view)
	}

	if *watch > 0 {
		time.Sleep(*watch)
	}
}

func printDashboard(v dashboardView) {
	fmt.Printf("\n%s  [%s]\n", v.Header, v.Status)
	if v.Location != nil {
		fmt.Printf("Location: %s %s\n", v.Location.Name, v.Location.Country)
	}
	if v.Current != nil {
		fmt.Printf("Now: %.1f°C, %s (feels like %.1f°C, humidity %d%%, wind %.1f m/s)\n",
			v.Current.Temperature, v.Current.Description, v.Current.FeelsLike,
			v.Current.HumidityPercent, v.Current.WindSpeed)
	}
	if len(v.Hourly) > 0 {
		fmt.Println("\nNext 24 hours:")
		for _, p := range v.Hourly {
			fmt.Printf("  %-9s %6.1f°C  %s\n", p.Label, p.Temperature, p.Description)
		}
	}
	if len(v.Daily) > 0 {
		fmt.Println("\nNext days:")
		for _, p := range v.Daily {
			fmt.Printf("  %-10s %6.1f°C  %s\n", p.Label, p.Temperature, p.Description)
		}
	}
}

// watchNotifications prints the data lines of the notification stream.
// ready is closed once the server confirms the subscription, or when the
// stream cannot be opened.
func watchNotifications(baseURL string, d time.Duration, ready chan<- struct{}) {
	var once sync.Once
	markReady := func() { once.Do(func() { close(ready) }) }
	defer markReady()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	resp, err := resty.New().SetBaseURL(baseURL).R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/api/notifications/stream")
	if err != nil {
		fmt.Printf("Error opening notification stream: %v\n", err)
		return
	}
	body := resp.RawBody()
	defer body.Close()

	readStream(body, os.Stdout, markReady)
}

// readStream copies event data lines from an SSE stream to out, calling
// connected when the server's ": connected" comment arrives
func readStream(r io.Reader, out io.Writer, connected func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == ": connected" {
			connected()
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fmt.Fprintf(out, "! %s\n", data)
		}
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
