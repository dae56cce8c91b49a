package main

import (
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udooneo/neo/config"
	"github.com/udooneo/neo/hardware/gpio"
)

func main() {
	pin := flag.Int("pin", 13, "pin to fade")
	period := flag.Int("period", gpio.DefaultPeriod, "software pwm period in microseconds")
	root := flag.String("sysfs", gpio.DefaultSysfsRoot, "sysfs gpio root")
	flag.Parse()

	logger := logrus.New()

	// the exit hook frees the pins on ctrl-c
	engine := gpio.New(gpio.Sysfs{Root: *root}, config.DefaultNeoLines, gpio.Options{
		Logger:        logger,
		DefaultPeriod: *period,
	})
	if err := engine.Init(); err != nil && !engine.IsUsable(*pin) {
		logger.Fatalf("unable to set up pin %d: %s", *pin, err)
	}

	for {
		for duty := 0; duty <= gpio.MaxDuty; duty += 5 {
			if err := engine.WriteDuty(*pin, duty); err != nil {
				logger.Fatalf("unable to set duty: %s", err)
			}

			time.Sleep(time.Millisecond * 10)
		}

		for duty := gpio.MaxDuty; duty >= 0; duty -= 5 {
			if err := engine.WriteDuty(*pin, duty); err != nil {
				logger.Fatalf("unable to set duty: %s", err)
			}

			time.Sleep(time.Millisecond * 10)
		}
	}
}
