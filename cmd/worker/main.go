package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gopherchat/agent/internal/agent"
	"github.com/gopherchat/agent/internal/ai"
	"github.com/gopherchat/agent/internal/chat"
	"github.com/gopherchat/agent/internal/config"
	"github.com/gopherchat/agent/internal/db"
	"github.com/gopherchat/agent/internal/search"
	"github.com/gopherchat/agent/internal/store/rabbitmq"
	"github.com/gopherchat/agent/internal/store/redisstore"
	"github.com/gopherchat/agent/internal/tools"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// runner owns everything one job needs: the provider registry, the
// tool roster builder, the job repo and the chat recorder.
type runner struct {
	cfg  config.Config
	repo *chat.Repo
	reg  *ai.Registry
	rds  *redisstore.Store
}

func (r *runner) newToolset() *tools.Registry {
	roster := tools.NewRegistry()
	roster.Register(tools.NewCalculator())
	if r.cfg.BingSearchAPIKey != "" {
		mgr := search.NewManager("bing")
		mgr.Register(search.NewBing(r.cfg.BingSearchAPIKey, ""))
		roster.Register(search.NewTool(mgr))
	}
	return roster
}

func (r *runner) newExecutor(ctx context.Context) (*agent.Executor, error) {
	provider, err := r.reg.Get(ctx, r.cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	sp, ok := provider.(agent.StreamProvider)
	if !ok {
		return nil, errors.New("provider does not support streaming")
	}
	exec := agent.NewExecutor(sp, r.newToolset(), r.cfg.AgentSystemTemplate, r.cfg.AgentMaxIterations)
	exec.OnCompletion(chat.NewRecorder(r.rds))
	return exec, nil
}

func (r *runner) handleJob(ctx context.Context, jobID string) error {
	start := time.Now()

	_ = r.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := r.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	var payload chat.JobPayload
	if err := json.Unmarshal([]byte(j.Payload), &payload); err != nil {
		msg := "bad payload: " + err.Error()
		_ = r.repo.MarkJobFailed(ctx, jobID, msg)
		return errors.New(msg)
	}
	if len(payload.Messages) == 0 {
		msg := "empty payload"
		_ = r.repo.MarkJobFailed(ctx, jobID, msg)
		return errors.New(msg)
	}

	exec, err := r.newExecutor(ctx)
	if err != nil {
		_ = r.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	req := agent.Request{
		ConversationID: payload.ConversationID,
		UserID:         strconv.FormatUint(j.UserID, 10),
		Messages:       payload.Messages,
	}

	events, errs := exec.Execute(ctx, req)
	if _, err := agent.Collect(events, errs); err != nil {
		_ = r.repo.MarkJobFailed(ctx, jobID, err.Error())
		log.Printf("job %s failed cost=%s err=%v", jobID, time.Since(start), err)
		return err
	}

	if err := r.repo.MarkJobSucceeded(ctx, jobID, payload.ConversationID); err != nil {
		return err
	}
	log.Printf("job %s done cost=%s", jobID, time.Since(start))
	return nil
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m, cfg.Temperature), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m, cfg.Temperature), nil
	})

	run := &runner{cfg: cfg, repo: chat.NewRepo(gdb), reg: reg, rds: rds}

	// publisher side declares the full main/retry/dlq topology, reuse it
	// so both processes agree on the queue arguments
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit: %v", err)
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				if err := run.handleJob(ctx, m.JobID); err != nil {
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
