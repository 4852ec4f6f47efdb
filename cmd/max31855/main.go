package main

import (
	"flag"
	"log"
	"time"

	"github.com/mikesmitty/max31855"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func main() {
	bus := flag.String("bus", "", "Name of the SPI bus")
	csName := flag.String("cs", "", "Name of the chip select pin")
	soName := flag.String("so", "", "Name of the data pin (bit-bang mode)")
	sckName := flag.String("sck", "", "Name of the clock pin (bit-bang mode)")
	bitbang := flag.Bool("bitbang", false, "Clock the frame out in software instead of using the SPI peripheral")
	flag.Parse()

	_, err := host.Init()
	if err != nil {
		log.Fatal(err)
	}

	cs := gpioreg.ByName(*csName)
	if cs == nil {
		log.Fatalf("no such pin: %q", *csName)
	}

	var dev *max31855.Dev
	if *bitbang {
		so := gpioreg.ByName(*soName)
		sck := gpioreg.ByName(*sckName)
		if so == nil || sck == nil {
			log.Fatalf("no such pins: %q, %q", *soName, *sckName)
		}
		dev, err = max31855.NewBitBang(cs, so, sck)
	} else {
		var sb spi.PortCloser
		sb, err = spireg.Open(*bus)
		if err != nil {
			log.Fatal(err)
		}
		dev, err = max31855.New(sb, cs)
	}
	if err != nil {
		log.Fatal(err)
	}

	ticker := time.NewTicker(1 * time.Second)

	for {
		// One acquisition, several decodes: each Dev-level decode
		// method would trigger its own independently-timed conversion.
		f, err := dev.ReadRaw()
		if err != nil {
			log.Print(err)
			<-ticker.C
			continue
		}
		if !f.IdentityOk() {
			log.Print("device id check failed, check wiring")
			<-ticker.C
			continue
		}
		if fc := f.Fault(); fc != max31855.FaultOk {
			log.Printf("thermocouple fault: %v", fc)
			<-ticker.C
			continue
		}
		t, _ := f.Temperature()
		cj, _ := f.ColdJunctionTemperature()
		log.Printf("thermocouple: %.2f°C cold junction: %.2f°C", t.Celsius(), cj.Celsius())

		<-ticker.C
	}
}
