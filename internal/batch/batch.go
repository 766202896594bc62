package batch

import "fmt"

// Call один тестовый звонок: идентификатор и расшифровка разговора.
// Набор фиксированный, формируется при старте процесса и не изменяется.
type Call struct {
	ID         string
	Transcript string
}

// TestCalls фиксированный набор звонков для извлечения сущностей.
// Одинаковый для всех провайдеров, чтобы сравнение было честным.
var TestCalls = []Call{
	{ID: "call-1", Transcript: "Agent: Hello! Customer: My name is John Doe, email john@example.com, phone 555-1234"},
	{ID: "call-2", Transcript: "Agent: Hi there! Customer: I'm Jane Smith, jane@test.com, 555-5678"},
	{ID: "call-3", Transcript: "Agent: Good morning! Customer: This is Bob Wilson, bob@company.com, 555-9012"},
	{ID: "call-4", Transcript: "Agent: Welcome! Customer: Alice Brown here, alice@email.com, 555-3456"},
	{ID: "call-5", Transcript: "Agent: How can I help? Customer: I'm Charlie Davis, charlie@mail.com, 555-7890"},
}

// Extraction структурированный ответ модели по одному звонку.
// Декодируется из JSON, который модель обязана вернуть по промпту.
type Extraction struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}

// Result извлечённые поля, привязанные к исходному звонку через его идентификатор.
type Result struct {
	CallID string
	Data   Extraction
}

// ExtractionPrompt строит промпт извлечения сущностей для одной расшифровки.
// Промпт общий для обоих провайдеров.
func ExtractionPrompt(transcript string) string {
	return fmt.Sprintf(
		"Extract the following from this call transcript:\n"+
			"- Customer name\n"+
			"- Email address\n"+
			"- Phone number\n\n"+
			"Transcript: %s\n\n"+
			"Return as JSON with keys: customer_name, email, phone",
		transcript,
	)
}
