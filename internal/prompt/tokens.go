package prompt

import (
	"github.com/cloudwego/eino/schema"
	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding covers model names tiktoken has never heard of, which is
// the common case with OpenRouter-routed models.
const fallbackEncoding = "cl100k_base"

// perMessageOverhead approximates the chat-markup tokens wrapped around each
// message by OpenAI-style endpoints.
const perMessageOverhead = 4

// CountTokens estimates the prompt size of an assembled message list. The
// estimate only needs to be stable and roughly proportional: it gates a
// configured ceiling, it does not bill anyone.
func CountTokens(modelName string, messages []*schema.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return 0, err
		}
	}

	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		total += len(enc.Encode(string(msg.Role), nil, nil))
		total += len(enc.Encode(msg.Content, nil, nil))
	}
	return total, nil
}
