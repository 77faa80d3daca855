// Package config loads the process configuration from the environment,
// with an optional .env file for development setups.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the env var prefix, e.g. WATERGUARD_BROKER.
const Prefix = "WATERGUARD"

// Config is the full process configuration.
type Config struct {
	// Broker is the MQTT broker address.
	Broker string `envconfig:"BROKER" default:"tcp://192.168.1.200:1883"`

	// BaseTopic prefixes all MQTT traffic for this device.
	BaseTopic string `envconfig:"BASE_TOPIC" default:"water/guard"`

	// ClientID identifies this device to the broker.
	ClientID string `envconfig:"CLIENT_ID" default:"water-guard"`

	// HTTPAddr is the status server listen address. Empty disables it.
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":80"`

	// Iface is the network interface monitored for connectivity.
	Iface string `envconfig:"IFACE" default:"wlan0"`

	// GPIOChip is the GPIO character device the pins live on.
	GPIOChip string `envconfig:"GPIO_CHIP" default:"gpiochip0"`

	// Pin assignments (BCM numbering).
	PinValvePower int `envconfig:"PIN_VALVE_POWER" default:"10"`
	PinValveOpen  int `envconfig:"PIN_VALVE_OPEN" default:"12"`
	PinValveClose int `envconfig:"PIN_VALVE_CLOSE" default:"13"`
	PinButton1    int `envconfig:"PIN_BUTTON1" default:"35"`
	PinButton2    int `envconfig:"PIN_BUTTON2" default:"0"`
	PinButton3    int `envconfig:"PIN_BUTTON3" default:"27"`

	// MeterPort is the serial device of the pulse-counter coprocessor.
	MeterPort string `envconfig:"METER_PORT" default:"/dev/ttyS1"`

	// MeterBaud is the serial line rate.
	MeterBaud int `envconfig:"METER_BAUD" default:"115200"`

	// BatteryADCPath is the sysfs voltage file, in millivolts.
	BatteryADCPath string `envconfig:"BATTERY_ADC_PATH" default:"/sys/bus/iio/devices/iio:device0/in_voltage0_input"`

	// PowerSensePath is the sysfs external-power online file.
	PowerSensePath string `envconfig:"POWER_SENSE_PATH" default:"/sys/class/power_supply/ac/online"`

	// DisplayDev is the character display device. Empty renders to stdout.
	DisplayDev string `envconfig:"DISPLAY_DEV" default:"/dev/lcd"`

	// DisplayCols and DisplayRows give the display geometry.
	DisplayCols int `envconfig:"DISPLAY_COLS" default:"20"`
	DisplayRows int `envconfig:"DISPLAY_ROWS" default:"4"`

	// Debug enables debug logging.
	Debug bool `envconfig:"DEBUG" default:"false"`
}

// Load reads the optional .env file and then the environment. A missing
// .env is not an error; a malformed one is.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}
