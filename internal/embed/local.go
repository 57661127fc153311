package embed

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

// initRuntime initializes the onnxruntime environment once per process.
func initRuntime() error {
	var err error
	ortInit.Do(func() {
		if lib := os.Getenv("DOULA_ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		err = ort.InitializeEnvironment()
	})
	if err != nil {
		return fmt.Errorf("initializing onnxruntime: %w", err)
	}
	if !ort.IsInitialized() {
		return fmt.Errorf("onnxruntime environment not initialized")
	}
	return nil
}

// LocalEmbedder runs a sentence-transformer ONNX model in-process.
// The model directory must contain model.onnx and tokenizer.json
// (the standard export layout for models like all-MiniLM-L6-v2).
type LocalEmbedder struct {
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	dims    int

	mu sync.Mutex // onnx session runs are serialized
}

// NewLocalEmbedder loads the tokenizer and ONNX model from modelDir.
func NewLocalEmbedder(modelDir string) (*LocalEmbedder, error) {
	if modelDir == "" {
		return nil, fmt.Errorf("model directory is required")
	}
	if err := initRuntime(); err != nil {
		return nil, err
	}

	tk, err := pretrained.FromFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, "model.onnx"),
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("loading onnx model: %w", err)
	}

	return &LocalEmbedder{tk: tk, session: session}, nil
}

// Embed tokenizes the text, runs the model, and mean-pools the token
// embeddings into a single L2-normalized sentence vector.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoding, err := l.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}
	seqLen := len(encoding.Ids)
	if seqLen == 0 {
		return nil, fmt.Errorf("tokenizer produced no tokens")
	}

	ids := make([]int64, seqLen)
	mask := make([]int64, seqLen)
	typeIds := make([]int64, seqLen)
	for i, id := range encoding.Ids {
		ids[i] = int64(id)
	}
	for i, m := range encoding.AttentionMask {
		mask[i] = int64(m)
	}
	for i, t := range encoding.TypeIds {
		typeIds[i] = int64(t)
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("creating mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIds)
	if err != nil {
		return nil, fmt.Errorf("creating type tensor: %w", err)
	}
	defer typeTensor.Destroy()

	l.mu.Lock()
	outputs := []ort.Value{nil}
	err = l.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("running model: %w", err)
	}

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer hidden.Destroy()

	outShape := hidden.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	hiddenSize := int(outShape[2])

	vector := meanPool(hidden.GetData(), mask, seqLen, hiddenSize)
	l2Normalize(vector)
	l.dims = hiddenSize
	return vector, nil
}

// EmbedBatch embeds texts one at a time. Sequence lengths vary per text,
// so there is no padding logic; guideline sets are small enough that
// single-item runs are fine.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			continue
		}
		vector, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = vector
	}
	return out, nil
}

// Dimensions returns the model's hidden size, or 0 before the first call.
func (l *LocalEmbedder) Dimensions() int {
	return l.dims
}

// Close releases the onnx session.
func (l *LocalEmbedder) Close() error {
	if l.session != nil {
		l.session.Destroy()
		l.session = nil
	}
	return nil
}

// meanPool averages token embeddings, skipping positions the attention
// mask zeroes out.
func meanPool(hidden []float32, mask []int64, seqLen, hiddenSize int) []float32 {
	vector := make([]float32, hiddenSize)
	var count float32
	for pos := 0; pos < seqLen; pos++ {
		if pos < len(mask) && mask[pos] == 0 {
			continue
		}
		count++
		for d := 0; d < hiddenSize; d++ {
			vector[d] += hidden[pos*hiddenSize+d]
		}
	}
	if count > 0 {
		for d := range vector {
			vector[d] /= count
		}
	}
	return vector
}

// l2Normalize scales the vector to unit length in place.
func l2Normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
}
