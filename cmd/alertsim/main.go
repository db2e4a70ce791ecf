// Command alertsim indexes synthetic Wazuh-shaped alerts into the alert
// store so risk scoring can be exercised without a live detection engine.
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/iotsentry/iotsentry/internal/config"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to config file")
		ip          = flag.String("ip", "192.168.1.101", "source IP to attribute alerts to")
		level       = flag.Int("level", 7, "alert severity level")
		count       = flag.Int("count", 1, "number of alerts to index")
		description = flag.String("description", "Simulated intrusion attempt", "alert description")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.AlertStore.Addresses,
		Username:  cfg.AlertStore.Username,
		Password:  cfg.AlertStore.Password(),
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.AlertStore.InsecureSkipVerify},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create alert store client: %v", err)
	}

	index := fmt.Sprintf("wazuh-alerts-4.x-%s", time.Now().Format("2006.01.02"))

	for i := 0; i < *count; i++ {
		if err := indexAlert(client, index, *ip, *level, *description); err != nil {
			log.Fatalf("Failed to index alert: %v", err)
		}
	}

	log.Printf("Indexed %d alert(s) for %s at level %d into %s", *count, *ip, *level, index)
}

func indexAlert(client *opensearch.Client, index, ip string, level int, description string) error {
	alert := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"rule": map[string]any{
			"level":       level,
			"description": description,
			"id":          uuid.NewString()[:8],
			"firedtimes":  1,
		},
		"agent": map[string]any{
			"id":   "001",
			"name": "iot-gateway",
		},
		"data": map[string]any{
			"srcip":    ip,
			"protocol": "mqtt",
		},
		"decoder": map[string]any{
			"name": "mqtt-decoder",
		},
		"location": "network-traffic",
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), client)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index request returned status %s", res.Status())
	}

	return nil
}
