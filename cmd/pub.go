package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/kallstrom/embermqtt/internal/logging"
	"github.com/kallstrom/embermqtt/internal/mqtt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a message to an MQTT broker",

	Args: func(cmd *cobra.Command, args []string) error {
		if QoS < 0 || QoS > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", QoS)
		}
		if KeepAliveSeconds < 0 {
			return fmt.Errorf("--keep_alive cannot be negative")
		}
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish()
	},
}

func runPublish() error {
	factory, err := mqtt.NewFactory(mqtt.RolePublisher)
	if err != nil {
		return err
	}

	clientName := MQTTClientName
	if clientName == "" {
		clientName = mqtt.RandomClientID()
		log.Infof("using generated client ID %s", clientName)
	}

	opts := []mqtt.ConnectOption{
		mqtt.ClientName(clientName),
		mqtt.CleanStart(true),
		mqtt.KeepAliveSeconds(KeepAliveSeconds),
	}
	if WillTopic != "" {
		opts = append(opts, mqtt.WillTopic(WillTopic), mqtt.WillMessage([]byte(WillMessage)),
			mqtt.WillQoS(WillQoS), mqtt.WillRetain(WillRetain))
	}

	client := factory.NewClient(fmt.Sprintf("%s:%s", MQTTBroker, mqtt.UnencryptedPortTCP))
	signal, err := client.Dial(opts...)
	if err != nil {
		return err
	}
	if _, err := signal.Wait(); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}

	if FileName != "" {
		if err := publishFromFile(client); err != nil {
			return err
		}
	} else {
		if _, err := client.Publish(Topic, []byte(Message), QoS, Retain).Wait(); err != nil {
			return err
		}
	}

	if !TestNoDisconnect {
		client.Disconnect()
	}
	return nil
}

func publishFromFile(client *mqtt.Client) error {
	f, err := os.Open(FileName)
	if err != nil {
		return logging.LoggedErrorf("cannot open file %s: %w", FileName, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := client.Publish(row[0], []byte(row[1]), QoS, false).Wait(); err != nil {
			return err
		}
	}
	return nil
}

// MQTTBroker is the MQTT host to dial.
var MQTTBroker string

// MQTTClientName is the MQTT client name - a short UUID by default.
var MQTTClientName string

// Topic is the MQTT topic to publish to.
var Topic string

// Message is the MQTT message text to publish.
var Message string

// KeepAliveSeconds is the MQTT number of seconds to keep a connection alive.
var KeepAliveSeconds int

// QoS is the MQTT quality of service to publish at.
var QoS int

// FileName is the name of a file of CSV <topic,message> lines to publish instead of a single message.
var FileName string

// Retain indicates if the published message should be retained.
var Retain bool

// WillMessage is the MQTT message text to send on a dirty disconnect.
var WillMessage string

// WillTopic is the topic for a will message to send on a dirty disconnect.
var WillTopic string

// WillQoS is the QoS for delivery of the will message.
var WillQoS int

// WillRetain is the retain flag for the will message.
var WillRetain bool

// TestNoDisconnect, if true, skips sending DISCONNECT so WILL delivery can be exercised.
var TestNoDisconnect bool

func init() {
	RootCmd.AddCommand(publishCmd)
	flags := publishCmd.Flags()

	flags.StringVarP(&MQTTBroker, "broker", "b", "localhost", "the MQTT broker host to connect to")
	flags.StringVarP(&MQTTClientName, "client", "c", "", "the MQTT client name to use - default is a short UUID")
	flags.StringVarP(&FileName, "file", "f", "", "file with CSV <topic,message> lines to publish")
	flags.IntVarP(&KeepAliveSeconds, "keep_alive", "", 0, "number of seconds to keep a connection alive")
	flags.StringVarP(&Message, "message", "m", "", "the message to send")
	flags.StringVarP(&Topic, "topic", "t", "test", "the MQTT topic to send the message to")
	flags.IntVarP(&QoS, "qos", "q", 0, "quality of service 0-2")
	flags.BoolVarP(&Retain, "retain", "r", false, "whether the message should be retained")
	flags.StringVarP(&WillMessage, "wmessage", "", "", "the will message to send on an unclean disconnect")
	flags.IntVarP(&WillQoS, "wqos", "", 0, "quality of service for delivery of the will message")
	flags.BoolVarP(&WillRetain, "wretain", "", false, "whether the will message should be retained")
	flags.StringVarP(&WillTopic, "wtopic", "", "", "the topic for the will message")
	flags.BoolVarP(&TestNoDisconnect, "test_no_disconnect", "", false, "skip sending DISCONNECT, to test WILL delivery")
}
