package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	v1 "skyward/contracts/messages/v1"
)

// simctl drives a running station over its HTTP ingress: submit a
// demo mission, poll it, cancel it, or dump the fleet.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "station base URL")
	drones := flag.Int("drones", 2, "drones to request on submit")
	minBattery := flag.Float64("min-battery", 30, "battery floor on submit")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: simctl [flags] submit | status <mission-id> | cancel <mission-id> | fleet")
		os.Exit(2)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	switch flag.Arg(0) {
	case "submit":
		submit(client, *addr, *drones, *minBattery)
	case "status":
		requireArg("status")
		get(client, *addr+"/v1/missions/"+flag.Arg(1))
	case "cancel":
		requireArg("cancel")
		post(client, *addr+"/v1/missions/"+flag.Arg(1)+"/cancel", nil)
	case "fleet":
		get(client, *addr+"/v1/fleet")
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
}

func submit(client *http.Client, addr string, drones int, minBattery float64) {
	task := v1.SubmitTask{
		TaskID:      fmt.Sprintf("task-%d", time.Now().Unix()),
		Name:        "simctl demo flight",
		MissionType: "survey",
		DroneCount:  drones,
		MinBattery:  minBattery,
		Window: v1.Window{
			Start: time.Now().UTC(),
			End:   time.Now().UTC().Add(time.Hour),
		},
		Waypoints: []v1.Waypoint{
			{Lat: 47.3980, Lon: 8.5460, Alt: 50},
			{Lat: 47.3990, Lon: 8.5470, Alt: 60},
			{Lat: 47.4000, Lon: 8.5480, Alt: 50},
		},
	}
	raw, err := json.Marshal(task)
	if err != nil {
		log.Fatalf("encode task: %v", err)
	}
	post(client, addr+"/v1/missions", raw)
}

func requireArg(command string) {
	if flag.NArg() < 2 {
		log.Fatalf("%s needs a mission id", command)
	}
}

func get(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	dump(resp)
}

func post(client *http.Client, url string, body []byte) {
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	dump(resp)
}

func dump(resp *http.Response) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response: %v", err)
	}
	fmt.Printf("%s\n%s\n", resp.Status, raw)
}
