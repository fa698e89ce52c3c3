package main

import soundmodem "github.com/doismellburning/soundmodem/src"

func main() {
	soundmodem.SmgenMain()
}
