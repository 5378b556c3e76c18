// Command leadbot runs the lead qualification agent.
//
//	@title						Lead Qualifier API
//	@version					1.0
//	@description				Web chat, WhatsApp webhook and lead administration.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
