package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/joho/godotenv"
	"github.com/sightd/sightd/server"
	"github.com/sightd/sightd/server/nn"
)

func main() {
	parser := argparse.NewParser("sightd", "Object detection web service for uploaded images and videos")
	configFilePath := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "sightd.json"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen port", Default: ":8080"})
	onnxLib := parser.String("", "onnxlib", &argparse.Options{Help: "Path to the ONNX Runtime shared library", Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	// .env holds the identity provider API key during development
	godotenv.Load()

	if err := nn.InitializeOnnxRuntime(*onnxLib); err != nil {
		fmt.Printf("Failed to initialize ONNX Runtime: %v\n", err)
		os.Exit(1)
	}
	defer nn.DestroyOnnxRuntime()

	s, err := server.NewServer(*configFilePath)
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	s.ListenForKillSignals()
	if err := s.ListenHTTP(*port); err != nil {
		fmt.Printf("%v\n", err)
	}
}
