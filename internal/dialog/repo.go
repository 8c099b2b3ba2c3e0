package dialog

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Repo состояния диалогов по чатам. Брошенный диалог истекает сам.
type Repo struct {
	cache *expirable.LRU[int64, Item]
}

func NewRepo(size int, ttl time.Duration) *Repo {
	if size <= 0 {
		size = 256
	}
	return &Repo{cache: expirable.NewLRU[int64, Item](size, nil, ttl)}
}

func (r *Repo) Get(chatID int64) Item {
	it, ok := r.cache.Get(chatID)
	if !ok {
		// если записи нет, считаем, что диалога нет
		return Item{ChatID: chatID, State: StateIdle, Payload: Payload{}}
	}
	return it
}

func (r *Repo) Set(chatID int64, state State, payload Payload) {
	if payload == nil {
		payload = Payload{}
	}
	r.cache.Add(chatID, Item{ChatID: chatID, State: state, Payload: payload})
}

func (r *Repo) Reset(chatID int64) {
	r.cache.Remove(chatID)
}

// GetString Helper для безопасного чтения строк из payload
func GetString(p Payload, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
