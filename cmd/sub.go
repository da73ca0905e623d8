package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/kallstrom/embermqtt/internal/mqtt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var subscribeCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to a topic on an MQTT broker and print received messages",

	Args: func(cmd *cobra.Command, args []string) error {
		if SubQoS < 0 || SubQoS > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", SubQoS)
		}
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubscribe()
	},
}

func runSubscribe() error {
	factory, err := mqtt.NewFactory(mqtt.RoleSubscriber)
	if err != nil {
		return err
	}

	clientName := MQTTClientName
	if clientName == "" {
		clientName = mqtt.RandomClientID()
		log.Infof("using generated client ID %s", clientName)
	}

	client := factory.NewClient(fmt.Sprintf("%s:%s", MQTTBroker, mqtt.UnencryptedPortTCP))
	client.SetOnPublish(func(topic string, payload []byte, qos int, dup bool, retain bool, packetID int) {
		fmt.Printf("%s: %s\n", topic, string(payload))
	})
	client.SetOnDisconnection(func(reason error) {
		log.WithError(reason).Warn("disconnected from broker")
	})

	signal, err := client.Dial(mqtt.ClientName(clientName), mqtt.CleanStart(true), mqtt.KeepAliveSeconds(KeepAliveSeconds))
	if err != nil {
		return err
	}
	if _, err := signal.Wait(); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}

	subSignal := client.Subscribe([]mqtt.TopicFilter{{Topic: SubTopic, QoS: SubQoS}})
	results, err := subSignal.Wait()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Failed {
			return fmt.Errorf("broker refused subscription to %s", SubTopic)
		}
		log.Infof("subscribed to %s at granted QoS %d", SubTopic, r.GrantedQoS)
	}

	stop := make(chan os.Signal, 1)
	signalNotify(stop)
	<-stop
	client.Disconnect()
	return nil
}

// signalNotify wires SIGINT to ch, split out so tests could substitute it if needed.
func signalNotify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

// SubTopic is the MQTT topic filter to subscribe to.
var SubTopic string

// SubQoS is the quality of service to request for the subscription.
var SubQoS int

func init() {
	RootCmd.AddCommand(subscribeCmd)
	flags := subscribeCmd.Flags()

	flags.StringVarP(&MQTTBroker, "broker", "b", "localhost", "the MQTT broker host to connect to")
	flags.StringVarP(&MQTTClientName, "client", "c", "", "the MQTT client name to use - default is a short UUID")
	flags.StringVarP(&SubTopic, "topic", "t", "test", "the MQTT topic filter to subscribe to")
	flags.IntVarP(&SubQoS, "qos", "q", 0, "quality of service 0-2 to request")
	flags.IntVarP(&KeepAliveSeconds, "keep_alive", "", 60, "number of seconds to keep a connection alive")
}
