package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/sniff.go/pkg/mirror/mqtt"
	"github.com/robotalks/sniff.go/pkg/sniff"
)

var (
	mqttURL = "mqtt://localhost:1883/sniff/"
	id      = "+"
)

func init() {
	if val := os.Getenv("SNIFF_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&id, "id", id, "Sniffer ID to monitor, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(id+"/"+mqtt.TopicMeta, mqtt.Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: offline", topic)
			return
		}
		log.Printf("%s: %s", topic, string(payload))
	}))
	q.Sub(id+"/"+mqtt.TopicRaw, mqtt.Handler(func(topic string, payload []byte) {
		frame, err := mqtt.DecodeRaw(payload)
		if err != nil {
			log.Printf("%s: bad frame: %v", topic, err)
			return
		}
		log.Printf("%s: %s", strings.TrimSuffix(topic, "/"+mqtt.TopicRaw), sniff.FormatFrame(frame))
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
