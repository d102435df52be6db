package app

import (
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLines(drawer *font.Drawer, x int, lines ...string) {
	for i, line := range lines {
		drawer.Dot = fixed.P(x, lineHeight*(i+1))
		drawer.DrawString(line)
	}
}

// renderSample draws the latest sample, four lines of 7x13 text.
func renderSample(s env.Sample, have bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()

	if !have {
		drawLines(drawer, 0, "", "SpaceNode", "Waiting...")
		return img
	}

	temp, press, alt, hum := "T   --", "P   --", "Alt --", "RH  --"
	if s.PressureOK {
		temp = fmt.Sprintf("T %6.2f C", s.Temperature)
		press = fmt.Sprintf("P %7.2f hPa", s.PressureHPa())
		alt = fmt.Sprintf("Alt %6.1f m", s.Altitude)
	} else if s.HumidityOK {
		temp = fmt.Sprintf("T %6.2f C", s.HumidityTemp)
	}
	if s.HumidityOK {
		hum = fmt.Sprintf("RH %5.1f %%", s.Humidity)
	}

	drawLines(drawer, 0, temp, press, alt, hum)
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(25, 26)
	drawer.DrawString("SpaceNode")
	drawer.Dot = fixed.P(10, 43)
	drawer.DrawString("BMP280+SHT31")
	return img
}

// RunDisplay shows the latest published sample on an SSD1306.
func RunDisplay() error {
	cfg := config.Get()
	if !cfg.HasDisplay {
		return fmt.Errorf("display: DISPLAY_I2C_ADDR is not configured")
	}

	bus, err := sensors.OpenBus(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.DisplayAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("display: initialized at 0x%02X", cfg.DisplayAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := NewHub(nil)
	if err := subscribeSamples(client, cfg.TopicEnv, hub.Update); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.Info("display: starting update loop")
	refreshDisplay(sigCh, ticker.C, hub, func(img image.Image) error {
		return dev.Draw(dev.Bounds(), img, image.Point{})
	})

	log.Info("display: shutting down")
	if err := dev.Halt(); err != nil {
		log.Warnf("display: error turning display off: %v", err)
	}
	return nil
}

// refreshDisplay redraws the latest sample on every tick until stop fires.
func refreshDisplay(stop <-chan os.Signal, ticks <-chan time.Time, hub *Hub, draw func(image.Image) error) {
	for {
		select {
		case <-stop:
			return
		case <-ticks:
			s, have := hub.Latest()
			if err := draw(renderSample(s, have)); err != nil {
				log.Warnf("display: error updating display: %v", err)
			}
		}
	}
}
