// Package sd runs txt2img requests through a single-worker queue so
// concurrent UI actions do not pile onto the GPU backend.
package sd

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"comicinsights/pkg/diffusion"
	"comicinsights/pkg/schema"
	"comicinsights/pkg/utils"
)

type Queue struct {
	client *diffusion.Client
	stop   chan struct{}
	items  chan *Item
}

type Item struct {
	Request  *schema.Txt2ImgRequest
	Response chan [][]byte
	Error    chan error
}

func New(client *diffusion.Client) *Queue {
	return &Queue{
		client: client,
		items:  make(chan *Item, 100),
		stop:   make(chan struct{}),
	}
}

func (q *Queue) Start() {
	go q.processLoop()
}

func (q *Queue) Stop() {
	close(q.stop)
}

func (q *Queue) Add(req *schema.Txt2ImgRequest) (chan [][]byte, chan error, error) {
	respCh := make(chan [][]byte, 1)
	errCh := make(chan error, 1)

	select {
	case q.items <- &Item{
		Request:  req,
		Response: respCh,
		Error:    errCh,
	}:
		return respCh, errCh, nil
	default:
		return nil, nil, errors.New("queue is full")
	}
}

func (q *Queue) processLoop() {
	log.Info("diffusion queue started", "endpoint", q.client.Endpoint())
	for {
		select {
		case <-q.stop:
			log.Info("diffusion queue stopped")
			return
		case item := <-q.items:
			q.processItem(item)
		}
	}
}

func (q *Queue) processItem(item *Item) {
	req := item.Request

	log.Debug("processing generation", "prompt", utils.LimitStr(req.Prompt, 50))

	images, err := q.client.Generate(context.Background(), req)
	if err != nil {
		log.Error("generation failed", "error", err)
		item.Error <- err
		close(item.Response)
		return
	}

	item.Response <- images
	close(item.Error)
}
