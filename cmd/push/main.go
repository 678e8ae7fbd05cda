// Send an Apple Push notification over the legacy binary gateway.
//
//	./push [-params] <token> [<token2> [...]]
//	  -t    use the sandbox gateway
//	  -b badge
//	        badge number
//	  -c certificate
//	        push certificate (default "cert.p12")
//	  -f file
//	        JSON file with push message
//	  -p password
//	        certificate password
//	  -a text
//	        message text (default "Hello!")
//
//	Sample JSON file:
//	  {
//	    "aps": {
//	      "alert": "message",
//	      "badge": 0
//	    }
//	  }
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/silvadev/apns"
)

func main() {
	certFileName := flag.String("c", "cert.p12", "push `certificate`")
	password := flag.String("p", "", "certificate `password`")
	sandbox := flag.Bool("t", false, "use sandbox service")
	payloadFileName := flag.String("f", "", "JSON `file` with push message")
	alert := flag.String("a", "Hello!", "message `text`")
	badge := flag.Int("b", 0, "`badge` number")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Send an Apple Push notification\n")
		fmt.Fprintf(os.Stderr, "%s [-params] <token> [<token2> [...]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	if flag.NArg() < 1 {
		log.Fatalln("Error: no tokens")
	}
	tokens := flag.Args()

	var payload []byte
	if *payloadFileName != "" {
		data, err := os.ReadFile(*payloadFileName)
		if err != nil {
			log.Fatalln("Error loading push file:", err)
		}
		var v map[string]interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			log.Fatalln("Error parsing push file:", err)
		}
		payload = data
	} else {
		payload = apns.NewAlertPayload(*alert, *badge, "")
	}

	cert, err := apns.LoadCertificateP12(*certFileName, *password, *sandbox)
	if err != nil {
		log.Fatalln("Error loading certificate:", err)
	}

	sender := apns.NewSender(apns.DefaultGatewayFactory, cert)
	for _, token := range tokens {
		msg, err := apns.NewMessage(token, payload)
		if err != nil {
			log.Println("Error building message:", err)
			continue
		}
		env, err := sender.Send(msg)
		if err != nil {
			log.Println("Error:", err)
			break
		}
		log.Printf("Sent [%d]: %s", env.Identifier(), env.Status())
	}
	log.Println("Complete!")
}
