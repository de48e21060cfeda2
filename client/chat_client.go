package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// ChatClient talks to the conversational endpoints. Minutes chat and the
// general agent live on the minutes service; conversation history lives on
// the chat service, so the client holds one Client per base.
type ChatClient struct {
	minutes *Client
	chat    *Client
}

// NewChatClient creates a new chat client. minutes and chat are clients for
// the respective service bases; they share one cookie jar.
func NewChatClient(minutes, chat *Client) *ChatClient {
	return &ChatClient{minutes: minutes, chat: chat}
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// minutesChatRequest is the payload for a minutes editing chat turn.
type minutesChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	UserInput string        `json:"user_input"`
}

// MinutesChatResult is the backend's answer to a minutes chat turn. When
// the assistant edited the minutes, VersionID and Markdown describe the new
// version it saved.
type MinutesChatResult struct {
	AssistantMessage string `json:"assistant_message"`
	VersionID        *int64 `json:"version_id,omitempty"`
	Markdown         string `json:"markdown,omitempty"`
}

// MinutesChat sends one chat turn about a transcript's minutes. history is
// the prior conversation, oldest first; input is the new user message.
func (c *ChatClient) MinutesChat(ctx context.Context, transcriptID int64, history []ChatMessage, input string) (*MinutesChatResult, error) {
	var result MinutesChatResult
	path := fmt.Sprintf("/minutes_chat/%d", transcriptID)
	err := c.minutes.PostJSON(ctx, path, nil, minutesChatRequest{
		Messages:  history,
		UserInput: input,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// agentRequest is the payload for a general agent question.
type agentRequest struct {
	Body  string `json:"body"`
	Model string `json:"model,omitempty"`
}

// agentResponse tolerates the agent endpoint's response shapes. Deployments
// have answered with {"assistant": {"body": ...}}, {"body": ...} and
// {"chatResponse": ...}; editedMinutes and versionNo appear when the agent
// saved a minutes edit as part of answering.
type agentResponse struct {
	Assistant *struct {
		Body string `json:"body"`
	} `json:"assistant,omitempty"`
	Body          string `json:"body,omitempty"`
	ChatResponse  string `json:"chatResponse,omitempty"`
	EditedMinutes string `json:"editedMinutes,omitempty"`
	VersionNo     *int   `json:"versionNo,omitempty"`
}

// reply extracts the assistant text from whichever field is populated.
func (r *agentResponse) reply() string {
	if r.Assistant != nil && r.Assistant.Body != "" {
		return r.Assistant.Body
	}
	if r.Body != "" {
		return r.Body
	}
	return r.ChatResponse
}

// AgentReply is the agent's answer. When the agent edited the minutes
// while answering, EditedMinutes carries the updated document and
// VersionNo the version it was saved as.
type AgentReply struct {
	Reply         string
	EditedMinutes string
	VersionNo     *int
}

// Ask sends a free-form question to the agent and returns its reply.
func (c *ChatClient) Ask(ctx context.Context, body, model string) (*AgentReply, error) {
	var resp agentResponse
	err := c.minutes.PostJSON(ctx, "/agent", nil, agentRequest{
		Body:  body,
		Model: model,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &AgentReply{
		Reply:         resp.reply(),
		EditedMinutes: resp.EditedMinutes,
		VersionNo:     resp.VersionNo,
	}, nil
}

// Conversation is a stored chat thread on the chat service.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredMessage is one persisted message of a conversation.
type StoredMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversations lists stored chat threads.
func (c *ChatClient) Conversations(ctx context.Context) ([]Conversation, error) {
	var conversations []Conversation
	if err := c.chat.GetJSON(ctx, "/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Messages lists the messages of one conversation, oldest first.
func (c *ChatClient) Messages(ctx context.Context, conversationID int64) ([]StoredMessage, error) {
	query := url.Values{}
	query.Set("conversation_id", fmt.Sprintf("%d", conversationID))

	var messages []StoredMessage
	if err := c.chat.GetJSON(ctx, "/messages", query, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
