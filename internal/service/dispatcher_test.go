package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finzap/finzap/internal/domain"
	"github.com/finzap/finzap/internal/whatsapp"
)

type dispatcherEnv struct {
	dispatcher *Dispatcher
	users      *fakeUserStore
	convs      *fakeConversationStore
	messages   *fakeMessageStore
	aiLogs     *fakeAILogStore
	ledger     *fakeLedgerStore
	generator  *fakeGenerator
	sender     *fakeSender
}

func newDispatcherEnv(t *testing.T) *dispatcherEnv {
	t.Helper()
	env := &dispatcherEnv{
		users:     newFakeUserStore(),
		convs:     &fakeConversationStore{},
		messages:  &fakeMessageStore{},
		aiLogs:    &fakeAILogStore{},
		ledger:    &fakeLedgerStore{},
		generator: &fakeGenerator{},
		sender:    &fakeSender{},
	}

	classifier, err := NewClassifier(env.generator, env.aiLogs, env.ledger, testPrompts)
	require.NoError(t, err)
	composer, err := NewComposer(env.generator, env.aiLogs, testPrompts)
	require.NoError(t, err)

	env.dispatcher = NewDispatcher(
		NewUserService(env.users, env.ledger),
		NewConversationService(env.convs, env.messages),
		env.messages,
		NewLedgerService(env.ledger),
		NewSummaryService(&fakeSummaryStore{}, composer),
		classifier,
		composer,
		env.sender,
	)
	return env
}

// knownUser registers the sender up front so the flow under test is not the
// onboarding path.
func (env *dispatcherEnv) knownUser(t *testing.T, phone, name string) *domain.User {
	t.Helper()
	svc := NewUserService(env.users, env.ledger)
	user, _, err := svc.FindOrCreate(context.Background(), phone, name)
	require.NoError(t, err)
	return user
}

func textMessage(wamid, from, body string) whatsapp.Inbound {
	return whatsapp.Inbound{
		WAMID:       wamid,
		From:        from,
		ContactName: "Ana Souza",
		Type:        "text",
		Body:        body,
		Timestamp:   time.Now(),
	}
}

func TestHandleInboundRecordsExpense(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{
		`{"intent": "record_expense", "amount": "15,50", "description": "almoço", "category": "Alimentação"}`,
	}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "15,50 almoço"))

	require.Len(t, env.sender.sent, 1)
	reply := env.sender.sent[0]
	assert.Equal(t, "5511999998888", reply.To)
	assert.Equal(t, "wamid.in.1", reply.ReplyToWAMID)
	assert.Contains(t, reply.Body, "15.50")
	assert.Contains(t, reply.Body, "almoço")
	assert.Contains(t, reply.Body, "Alimentação")

	last, err := env.ledger.LastExpense(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "almoço", last.Description)

	inbound := env.messages.byDirection(domain.DirectionInbound)
	outbound := env.messages.byDirection(domain.DirectionOutbound)
	require.Len(t, inbound, 1)
	require.Len(t, outbound, 1)
	require.NotNil(t, outbound[0].ReplyToID)
	assert.Equal(t, inbound[0].ID, *outbound[0].ReplyToID)
	require.NotNil(t, inbound[0].AILogID, "inbound message is linked to its classification log")
}

func TestHandleInboundDuplicateDropped(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{
		`{"intent": "record_expense", "amount": "15,50", "description": "almoço"}`,
	}

	msg := textMessage("wamid.in.1", "5511999998888", "15,50 almoço")
	env.dispatcher.HandleInbound(context.Background(), msg)
	env.dispatcher.HandleInbound(context.Background(), msg)

	assert.Len(t, env.sender.sent, 1, "redelivery must not answer twice")
	assert.Len(t, env.messages.byDirection(domain.DirectionInbound), 1)
	assert.Len(t, env.ledger.expenses, 1, "redelivery must not duplicate the expense")
}

func TestHandleInboundFirstContactOnboarding(t *testing.T) {
	env := newDispatcherEnv(t)

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "oi"))

	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0].Body, "Bem-vindo(a)")
	assert.Contains(t, env.sender.sent[0].Body, "Ana")
	assert.Empty(t, env.generator.prompts, "first contact never reaches the model")
}

func TestHandleInboundNonText(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")

	env.dispatcher.HandleInbound(context.Background(), whatsapp.Inbound{
		WAMID: "wamid.in.1", From: "5511999998888", Type: "audio", Timestamp: time.Now(),
	})

	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0].Body, "mensagens de texto")
	assert.Empty(t, env.generator.prompts)
	require.Len(t, env.messages.byDirection(domain.DirectionInbound), 1, "non-text messages are still persisted")
	assert.Nil(t, env.messages.byDirection(domain.DirectionInbound)[0].Body)
}

func TestHandleInboundFarewellClosesConversation(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{`{"intent": "farewell", "response_text": "Até mais!"}`}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "tchau"))

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "Até mais!", env.sender.sent[0].Body)
	_, err := env.convs.GetActive(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestHandleInboundModelFailure(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.err = errors.New("rate limited")

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "15,50 almoço"))

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, FallbackReply, env.sender.sent[0].Body)
	assert.Empty(t, env.ledger.expenses)
}

func TestHandleInboundMissingFieldsAsksForClarification(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{
		`{"intent": "record_expense", "description": "almoço", "response_text": "Qual foi o valor?"}`,
	}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "gastei no almoço"))

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "Qual foi o valor?", env.sender.sent[0].Body)
	assert.Empty(t, env.ledger.expenses)
}

func TestHandleInboundDeleteWithEmptyLedger(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{`{"intent": "delete_last_expense"}`}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "apaga o último"))

	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0].Body, "não tem nenhum gasto registrado")
}

func TestHandleInboundExecutionErrorApologizes(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.ledger.failCreateExpense = errors.New("connection reset")
	env.generator.responses = []string{
		`{"intent": "record_expense", "amount": 10, "description": "café"}`,
	}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "10 café"))

	require.Len(t, env.sender.sent, 1)
	assert.Contains(t, env.sender.sent[0].Body, "algo deu errado")
}

func TestHandleInboundSendFailureSkipsOutboundRow(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.sender.err = errors.New("network down")
	env.generator.responses = []string{`{"intent": "help"}`}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "ajuda"))

	assert.Len(t, env.messages.byDirection(domain.DirectionInbound), 1, "inbound row survives a delivery failure")
	assert.Empty(t, env.messages.byDirection(domain.DirectionOutbound))
}

func TestHandleInboundReplyReference(t *testing.T) {
	env := newDispatcherEnv(t)
	env.knownUser(t, "5511999998888", "Ana Souza")
	env.generator.responses = []string{`{"intent": "help"}`}

	env.dispatcher.HandleInbound(context.Background(), textMessage("wamid.in.1", "5511999998888", "ajuda"))
	require.Len(t, env.sender.sent, 1)

	// Quote the assistant's reply; the new inbound row must reference it.
	outbound := env.messages.byDirection(domain.DirectionOutbound)
	require.Len(t, outbound, 1)

	env.generator.responses = []string{`{"intent": "thanks"}`}
	quoted := textMessage("wamid.in.2", "5511999998888", "valeu")
	quoted.ReplyToWAMID = outbound[0].WAMID
	env.dispatcher.HandleInbound(context.Background(), quoted)

	inbound := env.messages.byDirection(domain.DirectionInbound)
	require.Len(t, inbound, 2)
	require.NotNil(t, inbound[1].ReplyToID)
	assert.Equal(t, outbound[0].ID, *inbound[1].ReplyToID)
}
