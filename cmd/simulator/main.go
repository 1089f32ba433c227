package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"campuswatt/internal/models"
)

type nodeProfile struct {
	id         string
	currentMin float64
	currentMax float64
	interval   time.Duration
}

// Higher draw for labs, lower for faculty rooms, roughly what the real
// metering hardware reports.
var profiles = []nodeProfile{
	{"CLASS_SIM_01", 1.0, 4.5, 10 * time.Second},
	{"CLASS_SIM_02", 1.0, 4.5, 12 * time.Second},
	{"CLASS_SIM_03", 1.0, 4.5, 9 * time.Second},
	{"FACULTY_SIM_01", 0.5, 3.0, 15 * time.Second},
	{"LAB_SIM_01", 2.0, 8.5, 7 * time.Second},
}

func makeReading(p nodeProfile) models.Reading {
	voltage := round2(225 + rand.Float64()*10)
	current := round3(p.currentMin + rand.Float64()*(p.currentMax-p.currentMin))
	powerFactor := round2(0.85 + rand.Float64()*0.14)
	frequency := round2(49.8 + rand.Float64()*0.4)
	power := round2(voltage * current * powerFactor)
	return models.Reading{
		NodeID:      p.id,
		Timestamp:   time.Now().Unix(),
		Voltage:     voltage,
		Current:     current,
		Power:       power,
		PowerFactor: powerFactor,
		Frequency:   frequency,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func simulateNode(p nodeProfile, client mqtt.Client, baseTopic string, logger *slog.Logger, quit <-chan struct{}) {
	topic := fmt.Sprintf("%s/%s", baseTopic, p.id)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			payload, err := json.Marshal(makeReading(p))
			if err != nil {
				logger.Error("marshal reading failed", "node_id", p.id, "err", err)
				continue
			}
			token := client.Publish(topic, 0, false, payload)
			token.Wait()
			if token.Error() != nil {
				logger.Error("publish failed", "topic", topic, "err", token.Error())
			}
		}
	}
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	baseTopic := flag.String("topic", "campus/data", "base topic; each node publishes to <topic>/<node_id>")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("node-simulator-" + uuid.NewString())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("connect to mqtt broker failed", "broker", *broker, "err", token.Error())
		os.Exit(1)
	}
	logger.Info("simulator connected", "broker", *broker, "nodes", len(profiles))

	quit := make(chan struct{})
	for _, p := range profiles {
		go simulateNode(p, client, *baseTopic, logger, quit)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	close(quit)
	client.Disconnect(250)
}
