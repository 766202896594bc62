// Package pricing хранит тарифы batch-режима для сравнения провайдеров.
package pricing

import (
	"os"
	"strconv"
)

// Цена за 1 млн токенов в batch-режиме, USD. Тарифы меняются чаще, чем код,
// поэтому перекрываются переменными окружения.
var (
	// OpenAIBatchPerMTok тариф gpt-4o-mini в Batch API (вход, со скидкой 50%).
	OpenAIBatchPerMTok = getEnvFloat("PRICE_OPENAI_BATCH_PER_MTOK", 0.075)

	// GeminiBatchPerMTok тариф Gemini Flash в batch-режиме (вход, со скидкой 50%).
	GeminiBatchPerMTok = getEnvFloat("PRICE_GEMINI_BATCH_PER_MTOK", 0.0375)
)

// getEnvFloat возвращает переменную окружения как float64 или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
