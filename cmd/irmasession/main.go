// Command irmasession starts and follows IRMA sessions as a requestor.
package main

import (
	"log"

	"github.com/privacybydesign/irmajs/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
