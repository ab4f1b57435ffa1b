package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bugsnag/bugsnag-go"
	"github.com/sirupsen/logrus"
	"github.com/tinwheel/herald"
)

// identityFlags collects repeated -identity token:fingerprint[:hashid] flags.
type identityFlags []herald.Identity

func (f *identityFlags) String() string {
	tokens := make([]string, 0, len(*f))
	for _, id := range *f {
		tokens = append(tokens, id.Token)
	}
	return strings.Join(tokens, ",")
}

func (f *identityFlags) Set(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("want token:fingerprint[:hashid], got %q", value)
	}
	id := herald.Identity{Token: parts[0], Fingerprint: parts[1]}
	if len(parts) == 3 {
		id.HashID = parts[2]
	}
	*f = append(*f, id)
	return nil
}

func main() {
	configPtr := flag.String("config", getEnv("HERALD_CONFIG", herald.DefaultConfigPath()), "path to config file")
	mqttHostPtr := flag.String("mqtt-host", getEnv("MQTT_HOST", ""), "mqtt broker (overrides config)")
	mqttUserPtr := flag.String("mqtt-user", getEnv("MQTT_USER", ""), "mqtt username (overrides config)")
	mqttPassPtr := flag.String("mqtt-pass", getEnv("MQTT_PASS", ""), "mqtt password (overrides config)")
	showTablePtr := flag.Bool("show-notifications", true, "show table with received notifications")
	refreshRatePtr := flag.Int("refresh-rate", 60, "refresh rate in seconds for notifications table")
	verbosePtr := flag.Bool("verbose", false, "log debug stuff")

	var identities identityFlags
	flag.Var(&identities, "identity", "identity slot as token:fingerprint[:hashid] (repeatable)")

	flag.Parse()

	if *verbosePtr {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if apiKey := os.Getenv("BUGSNAG_API_KEY"); apiKey != "" {
		bugsnag.Configure(bugsnag.Configuration{
			APIKey:          apiKey,
			ProjectPackages: []string{"main", "github.com/tinwheel/herald"},
		})
	}

	cfg, err := herald.LoadConfig(*configPtr)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if *mqttHostPtr != "" {
		cfg.MQTTHost = *mqttHostPtr
	}
	if *mqttUserPtr != "" {
		cfg.MQTTUser = *mqttUserPtr
	}
	if *mqttPassPtr != "" {
		cfg.MQTTPass = *mqttPassPtr
	}

	directory, err := cfg.Directory()
	if err != nil {
		logrus.Fatalf("federation: %v", err)
	}
	if directory.Size() == 0 {
		logrus.Fatal("no coordinators configured, nothing to watch")
	}
	if len(identities) == 0 {
		logrus.Fatal("no identities given, pass at least one -identity")
	}

	kv, err := herald.NewFileKV(cfg.StateFile())
	if err != nil {
		logrus.Fatalf("state: %v", err)
	}

	pool := herald.NewMQTTPool(cfg.MQTTHost, mqttClientID(), cfg.MQTTUser, cfg.MQTTPass)
	if err := pool.Connect(); err != nil {
		logrus.Fatalf("mqtt: %v", err)
	}
	defer pool.Disconnect()

	engine := herald.NewEngine(directory, pool, kv, terminalChime{}, logToaster{}, cfg.ConstrainedDisplay)
	engine.SetNavigator(func(target herald.NavigationTarget) {
		logrus.Infof("🧭 open order %s on identity %s", target.OrderID, target.IdentityToken)
	})
	engine.OnLoadingChange(func(loading bool) {
		if loading {
			logrus.Info("⏳ catching up with the federation...")
		} else {
			logrus.Info("📬 caught up")
		}
	})

	engine.Start()
	defer engine.Stop()

	for _, id := range identities {
		if err := engine.Registry.Put(id); err != nil {
			logrus.Fatalf("identity: %v", err)
		}
	}

	if *showTablePtr {
		go printNotificationsForever(engine, directory, *refreshRatePtr)
	}

	waitForInterrupt()
	logrus.Info("👋 bye")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func mqttClientID() string {
	hostname, _ := os.Hostname()
	return "herald-" + strings.Split(hostname, ".")[0]
}

func waitForInterrupt() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// terminalChime is the platform audio collaborator for a terminal client:
// one bell per notification, category only logged.
type terminalChime struct{}

func (terminalChime) Play(category herald.SoundCategory) {
	fmt.Print("\a")
	logrus.Debugf("🔊 playing %s", category)
}

// logToaster surfaces toasts as log lines. Click-through doesn't apply to a
// log line, so the onClick handler is dropped.
type logToaster struct{}

func (logToaster) ShowToast(content string, onClick func()) {
	logrus.Infof("💬 %s", content)
}
