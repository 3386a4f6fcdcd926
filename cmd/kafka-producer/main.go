package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// ScoreMessage mirrors the consumer's wire format for finished runs.
type ScoreMessage struct {
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
	Mode   string `json:"mode"`
	GameID string `json:"game_id,omitempty"`
}

var modes = []string{"walls", "pass-through"}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "arena-scores", "Kafka topic")
	userIDs := flag.String("users", "", "Comma-separated user ids to submit scores for (required)")
	rate := flag.Int("rate", 10, "Score submissions per second")
	maxScore := flag.Int("max-score", 500, "Maximum random score")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	users := strings.Split(*userIDs, ",")
	if *userIDs == "" || len(users) == 0 {
		log.Fatal("at least one user id is required (-users)")
	}

	fmt.Printf("Producing to %s topic %s for %d users at %d/s\n",
		*brokers, *topic, len(users), *rate)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendMessage := func(msg ScoreMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		pm := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(msg.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- pm:
		case <-done:
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	var sent int64
loop:
	for {
		select {
		case <-sigChan:
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			sendMessage(ScoreMessage{
				UserID: users[rand.Intn(len(users))],
				Score:  int64(rand.Intn(*maxScore + 1)),
				Mode:   modes[rand.Intn(len(modes))],
				GameID: uuid.NewString(),
			})
			sent++
		}
	}

	close(done)
	producer.AsyncClose()
	wg.Wait()

	fmt.Printf("\nSent: %d, Acked: %d, Errors: %d\n",
		sent, atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
}
