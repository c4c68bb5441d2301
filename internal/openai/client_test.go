package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock for the embeddings endpoint
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	args := m.Called(ctx, model, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func openModel(t *testing.T, api EmbeddingAPI, dims int) *EmbeddingModel {
	t.Helper()
	model, err := NewFactoryWithAPI(api, dims, 0).Open(context.Background(), DefaultEmbeddingModel)
	require.NoError(t, err)
	return model
}

func TestEmbeddingModel_Encode_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 3)

	ctx := context.Background()
	texts := []string{"first passage", "second passage"}
	expected := [][]float32{{1, 2, 3}, {4, 5, 6}}

	mockAPI.On("CreateEmbeddings", ctx, DefaultEmbeddingModel, texts).Return(expected, nil)

	vectors, err := model.Encode(ctx, texts)

	assert.NoError(t, err)
	assert.Equal(t, expected, vectors)
	assert.Equal(t, DefaultEmbeddingModel, model.Name())
	mockAPI.AssertExpectations(t)
}

func TestEmbeddingModel_Encode_EmptyText(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 3)

	vectors, err := model.Encode(context.Background(), []string{"ok", ""})

	assert.Nil(t, vectors)
	assert.Equal(t, ErrEmptyText, err)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingModel_Encode_NoTexts(t *testing.T) {
	model := openModel(t, new(MockEmbeddingAPI), 3)

	vectors, err := model.Encode(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbeddingModel_Encode_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 3)

	ctx := context.Background()
	apiErr := errors.New("model not loaded")
	mockAPI.On("CreateEmbeddings", ctx, DefaultEmbeddingModel, []string{"text"}).Return(nil, apiErr)

	vectors, err := model.Encode(ctx, []string{"text"})

	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

func TestEmbeddingModel_Encode_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 384)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, DefaultEmbeddingModel, []string{"text"}).Return([][]float32{{1, 2}}, nil)

	_, err := model.Encode(ctx, []string{"text"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestEmbeddingModel_Encode_AnyDimensionsMustAgree(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 0)

	ctx := context.Background()
	texts := []string{"a", "b"}
	mockAPI.On("CreateEmbeddings", ctx, DefaultEmbeddingModel, texts).Return([][]float32{{1, 2}, {1, 2, 3}}, nil)

	_, err := model.Encode(ctx, texts)

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestEmbeddingModel_Encode_CountMismatch(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model := openModel(t, mockAPI, 2)

	ctx := context.Background()
	texts := []string{"a", "b"}
	mockAPI.On("CreateEmbeddings", ctx, DefaultEmbeddingModel, texts).Return([][]float32{{1, 2}}, nil)

	_, err := model.Encode(ctx, texts)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbeddingModel_Encode_RateLimitHonoursContext(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	model, err := NewFactoryWithAPI(mockAPI, 2, 0.001).Open(context.Background(), "m")
	require.NoError(t, err)

	mockAPI.On("CreateEmbeddings", mock.Anything, "m", []string{"a"}).Return([][]float32{{1, 0}}, nil).Once()

	_, err = model.Encode(context.Background(), []string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = model.Encode(ctx, []string{"a"})
	assert.Error(t, err)
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 1)
}

// stallingAPI blocks until the request context is done
type stallingAPI struct{}

func (stallingAPI) CreateEmbeddings(ctx context.Context, _ string, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEmbeddingModel_Encode_Timeout(t *testing.T) {
	model, err := NewFactoryWithAPI(stallingAPI{}, 2, 0).WithTimeout(50*time.Millisecond).Open(context.Background(), "m")
	require.NoError(t, err)

	start := time.Now()
	_, err = model.Encode(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFactory_Open_EmptyName(t *testing.T) {
	_, err := NewFactoryWithAPI(new(MockEmbeddingAPI), 0, 0).Open(context.Background(), "  ")
	assert.Equal(t, ErrNoModel, err)
}

func TestNewFactory(t *testing.T) {
	factory := NewFactory(Config{BaseURL: "http://localhost:8081/v1/", EmbeddingDimensions: 384, RequestsPerSecond: 5, Timeout: 10 * time.Second})

	assert.NotNil(t, factory.api)
	assert.Equal(t, 10*time.Second, factory.timeout)
	assert.NotNil(t, factory.limiter)
	assert.Equal(t, 384, factory.dimensions)
}

// MockChatAPI is a mock for chat completions
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func TestChatClient_Complete_Success(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := NewChatClientWithAPI(mockAPI, DefaultChatConfig())

	ctx := context.Background()
	mockAPI.On("CreateChatCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == DefaultChatModel &&
			req.MaxTokens == 200 &&
			req.Temperature == 0.7 &&
			req.TopP == 0.9 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == openai.ChatMessageRoleUser &&
			req.Messages[0].Content == "prompt"
	})).Return(chatResponse("  an answer \n"), nil)

	answer, err := client.Complete(ctx, "prompt")

	require.NoError(t, err)
	assert.Equal(t, "an answer", answer)
	mockAPI.AssertExpectations(t)
}

func TestChatClient_Complete_Empty(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := NewChatClientWithAPI(mockAPI, ChatConfig{})

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(chatResponse("   "), nil).Once()
	_, err := client.Complete(context.Background(), "p")
	assert.Equal(t, ErrEmptyCompletion, err)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil).Once()
	_, err = client.Complete(context.Background(), "p")
	assert.Equal(t, ErrEmptyCompletion, err)
}

func TestChatClient_Complete_Error(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := NewChatClientWithAPI(mockAPI, ChatConfig{})
	apiErr := &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, apiErr)

	_, err := client.Complete(context.Background(), "p")

	assert.ErrorIs(t, err, apiErr)
	assert.Equal(t, DefaultChatModel, client.Model())
}
