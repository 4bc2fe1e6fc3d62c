// Command hashpw prints the bcrypt hash for CHECKBOT_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/soaringjerry/checkbot/internal/config"
	"github.com/soaringjerry/checkbot/internal/services"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			config.Exitf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	hash, err := services.HashPassword(password)
	if err != nil {
		config.Exitf("hash password: %v", err)
	}
	fmt.Println(hash)
}
