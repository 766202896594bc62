package tts

import "context"

// Result синтезированное аудио одного запроса. Chunks — количество полученных
// аудио-фрагментов (для стриминговых провайдеров; REST-провайдеры отдают один).
type Result struct {
	Audio  []byte
	Chunks int
	Format string // mp3|wav|pcm
}

// Synthesizer абстракция TTS-провайдера. Реализации взаимозаменяемы, чтобы
// проверка могла прогонять основной и резервный сервисы одинаково.
type Synthesizer interface {
	Name() string
	// Ready проверяет конфигурацию до любых сетевых вызовов.
	Ready() error
	Synthesize(ctx context.Context, text string) (*Result, error)
}
