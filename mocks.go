// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"bytes"
	"crypto/tls"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// MockAMQPChannel - Mock implementation of AMQPChannel interface for testing
// =============================================================================

// MockAMQPChannel is a mock implementation of AMQPChannel interface for testing.
type MockAMQPChannel struct {
	queueDeclareError        error
	queueDeclarePassiveError error
	queuePurgeError          error
	consumeError             error
	cancelError              error
	publishError             error
	closeError               error
	closed                   bool

	// queues maps queue names to their simulated message counts.
	queues map[string]int

	// purgeCounts maps queue names to how many messages a purge reports removed.
	purgeCounts map[string]int

	// consumeChannel feeds deliveries to Consume callers.
	consumeChannel <-chan amqp.Delivery

	// declaredQueues captures the names passed to QueueDeclare.
	declaredQueues []string

	// cancelledConsumers captures the consumer tags passed to Cancel.
	cancelledConsumers []string

	// publishedMessages captures published messages for verification.
	publishedMessages []PublishedMessage
}

// PublishedMessage captures the details of a published message.
type PublishedMessage struct {
	Exchange   string
	Key        string
	Mandatory  bool
	Immediate  bool
	Publishing amqp.Publishing
}

func NewMockAMQPChannel() *MockAMQPChannel {
	// A closed delivery channel simulates an empty queue by default.
	deliveryChannel := make(chan amqp.Delivery)
	close(deliveryChannel)

	return &MockAMQPChannel{
		queues:            map[string]int{},
		purgeCounts:       map[string]int{},
		consumeChannel:    deliveryChannel,
		publishedMessages: make([]PublishedMessage, 0),
	}
}

func (m *MockAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if m.queueDeclareError != nil {
		return amqp.Queue{}, m.queueDeclareError
	}
	m.declaredQueues = append(m.declaredQueues, name)
	return amqp.Queue{Name: name, Messages: m.queues[name]}, nil
}

func (m *MockAMQPChannel) QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if m.queueDeclarePassiveError != nil {
		return amqp.Queue{}, m.queueDeclarePassiveError
	}
	return amqp.Queue{Name: name, Messages: m.queues[name]}, nil
}

func (m *MockAMQPChannel) QueuePurge(name string, noWait bool) (int, error) {
	if m.queuePurgeError != nil {
		return 0, m.queuePurgeError
	}
	removed := m.purgeCounts[name]
	m.queues[name] = 0
	return removed, nil
}

func (m *MockAMQPChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if m.consumeError != nil {
		return nil, m.consumeError
	}
	return m.consumeChannel, nil
}

func (m *MockAMQPChannel) Cancel(consumer string, noWait bool) error {
	m.cancelledConsumers = append(m.cancelledConsumers, consumer)
	return m.cancelError
}

func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.publishedMessages = append(m.publishedMessages, PublishedMessage{
		Exchange:   exchange,
		Key:        key,
		Mandatory:  mandatory,
		Immediate:  immediate,
		Publishing: msg,
	})
	return m.publishError
}

func (m *MockAMQPChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

func (m *MockAMQPChannel) IsClosed() bool {
	return m.closed
}

func (m *MockAMQPChannel) Close() error {
	m.closed = true
	return m.closeError
}

// Helper methods for testing
func (m *MockAMQPChannel) SetQueueCount(queue string, count int) {
	m.queues[queue] = count
}

func (m *MockAMQPChannel) SetPurgeCount(queue string, count int) {
	m.purgeCounts[queue] = count
}

func (m *MockAMQPChannel) SetQueueDeclareError(err error) {
	m.queueDeclareError = err
}

func (m *MockAMQPChannel) SetQueueDeclarePassiveError(err error) {
	m.queueDeclarePassiveError = err
}

func (m *MockAMQPChannel) SetQueuePurgeError(err error) {
	m.queuePurgeError = err
}

func (m *MockAMQPChannel) SetConsumeError(err error) {
	m.consumeError = err
}

func (m *MockAMQPChannel) SetConsumeChannel(ch <-chan amqp.Delivery) {
	m.consumeChannel = ch
}

func (m *MockAMQPChannel) SetCancelError(err error) {
	m.cancelError = err
}

func (m *MockAMQPChannel) SetPublishError(err error) {
	m.publishError = err
}

func (m *MockAMQPChannel) SetCloseError(err error) {
	m.closeError = err
}

// GetPublishedMessages returns all captured published messages.
func (m *MockAMQPChannel) GetPublishedMessages() []PublishedMessage {
	return m.publishedMessages
}

// GetLastPublishedMessage returns the last published message, or nil if none.
func (m *MockAMQPChannel) GetLastPublishedMessage() *PublishedMessage {
	if len(m.publishedMessages) == 0 {
		return nil
	}
	return &m.publishedMessages[len(m.publishedMessages)-1]
}

// GetCancelledConsumers returns the consumer tags passed to Cancel.
func (m *MockAMQPChannel) GetCancelledConsumers() []string {
	return m.cancelledConsumers
}

// GetDeclaredQueues returns the queue names passed to QueueDeclare.
func (m *MockAMQPChannel) GetDeclaredQueues() []string {
	return m.declaredQueues
}

// =============================================================================
// MockRMQConnection - Mock implementation of RMQConnection interface for testing
// =============================================================================

// MockRMQConnection is a mock implementation of RMQConnection interface for testing.
type MockRMQConnection struct {
	connectionState tls.ConnectionState
	closed          bool
	closeError      error
	channelError    error
}

func NewMockRMQConnection() *MockRMQConnection {
	return &MockRMQConnection{}
}

func (m *MockRMQConnection) Channel() (*amqp.Channel, error) {
	if m.channelError != nil {
		return nil, m.channelError
	}
	return &amqp.Channel{}, nil
}

func (m *MockRMQConnection) ConnectionState() tls.ConnectionState {
	return m.connectionState
}

func (m *MockRMQConnection) IsClosed() bool {
	return m.closed
}

func (m *MockRMQConnection) Close() error {
	m.closed = true
	return m.closeError
}

// Helper methods for testing
func (m *MockRMQConnection) SetChannelError(err error) {
	m.channelError = err
}

func (m *MockRMQConnection) SetCloseError(err error) {
	m.closeError = err
}

// =============================================================================
// MockConnectionManager - Mock implementation of ConnectionManager interface for testing
// =============================================================================

// MockConnectionManager is a mock implementation of ConnectionManager interface for testing.
type MockConnectionManager struct {
	connection        RMQConnection
	channel           AMQPChannel
	connectionString  string
	closed            bool
	healthy           bool
	getConnectionErr  error
	getChannelErr     error
	closeErr          error
	reconnectCallback func(RMQConnection, AMQPChannel)
}

func NewMockConnectionManager() *MockConnectionManager {
	return &MockConnectionManager{
		connection:       NewMockRMQConnection(),
		channel:          NewMockAMQPChannel(),
		connectionString: "amqp://test",
		healthy:          true,
	}
}

func (m *MockConnectionManager) GetConnection() (RMQConnection, error) {
	if m.getConnectionErr != nil {
		return nil, m.getConnectionErr
	}
	return m.connection, nil
}

func (m *MockConnectionManager) GetChannel() (AMQPChannel, error) {
	if m.getChannelErr != nil {
		return nil, m.getChannelErr
	}
	return m.channel, nil
}

func (m *MockConnectionManager) GetConnectionString() string {
	return m.connectionString
}

func (m *MockConnectionManager) Close() error {
	m.closed = true
	return m.closeErr
}

func (m *MockConnectionManager) IsHealthy() bool {
	return m.healthy
}

func (m *MockConnectionManager) SetReconnectCallback(callback func(conn RMQConnection, ch AMQPChannel)) {
	m.reconnectCallback = callback
}

func (m *MockConnectionManager) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

// Helper methods for testing
func (m *MockConnectionManager) SetConnection(conn RMQConnection) {
	m.connection = conn
}

func (m *MockConnectionManager) SetChannel(ch AMQPChannel) {
	m.channel = ch
}

func (m *MockConnectionManager) SetHealthy(healthy bool) {
	m.healthy = healthy
}

func (m *MockConnectionManager) SetGetConnectionError(err error) {
	m.getConnectionErr = err
}

func (m *MockConnectionManager) SetGetChannelError(err error) {
	m.getChannelErr = err
}

func (m *MockConnectionManager) SetCloseError(err error) {
	m.closeErr = err
}

// =============================================================================
// MockSSHClient / MockSSHSession - Mock SSH implementations for testing
// =============================================================================

// CommandResult is the canned outcome a MockSSHClient returns for a command.
type CommandResult struct {
	Stdout string
	Stderr string
	Err    error
}

// MockSSHClient is a mock implementation of SSHClienter for testing. Commands
// are resolved against canned results; unknown commands succeed with empty
// output.
type MockSSHClient struct {
	results      map[string]CommandResult
	sessionError error
	closed       bool

	// executedCommands captures every command run or started through the client.
	executedCommands []string
	// startedCommands captures only commands launched without waiting.
	startedCommands []string
}

func NewMockSSHClient() *MockSSHClient {
	return &MockSSHClient{results: map[string]CommandResult{}}
}

func (m *MockSSHClient) NewSession() (SSHSessioner, error) {
	if m.sessionError != nil {
		return nil, m.sessionError
	}
	return &MockSSHSession{client: m}, nil
}

func (m *MockSSHClient) Client() *ssh.Client {
	return nil
}

func (m *MockSSHClient) Close() error {
	m.closed = true
	return nil
}

// Helper methods for testing
func (m *MockSSHClient) SetResult(cmd string, result CommandResult) {
	m.results[cmd] = result
}

func (m *MockSSHClient) SetSessionError(err error) {
	m.sessionError = err
}

// GetExecutedCommands returns every command run or started through the client.
func (m *MockSSHClient) GetExecutedCommands() []string {
	return m.executedCommands
}

// GetStartedCommands returns the commands launched without waiting.
func (m *MockSSHClient) GetStartedCommands() []string {
	return m.startedCommands
}

// MockSSHSession is the session produced by MockSSHClient.
type MockSSHSession struct {
	client *MockSSHClient
	stdout io.Writer
	stderr io.Writer
	closed bool
}

func (s *MockSSHSession) SetStdout(w io.Writer) {
	s.stdout = w
}

func (s *MockSSHSession) SetStderr(w io.Writer) {
	s.stderr = w
}

func (s *MockSSHSession) Run(cmd string) error {
	s.client.executedCommands = append(s.client.executedCommands, cmd)

	result := s.client.results[cmd]
	if s.stdout != nil {
		_, _ = io.WriteString(s.stdout, result.Stdout)
	}
	if s.stderr != nil {
		_, _ = io.WriteString(s.stderr, result.Stderr)
	}
	return result.Err
}

func (s *MockSSHSession) Start(cmd string) error {
	s.client.executedCommands = append(s.client.executedCommands, cmd)
	s.client.startedCommands = append(s.client.startedCommands, cmd)
	return s.client.results[cmd].Err
}

func (s *MockSSHSession) Close() error {
	s.closed = true
	return nil
}

// =============================================================================
// MockSFTPClient - Mock implementation of SFTPClienter for testing
// =============================================================================

// MockSFTPClient is a mock implementation of SFTPClienter for testing. Remote
// files live in an in-memory map.
type MockSFTPClient struct {
	files       map[string][]byte
	openError   error
	createError error
	closed      bool
}

func NewMockSFTPClient() *MockSFTPClient {
	return &MockSFTPClient{files: map[string][]byte{}}
}

func (m *MockSFTPClient) Create(path string) (io.WriteCloser, error) {
	if m.createError != nil {
		return nil, m.createError
	}
	return &mockSFTPFile{client: m, path: path}, nil
}

func (m *MockSFTPClient) Open(path string) (io.ReadCloser, error) {
	if m.openError != nil {
		return nil, m.openError
	}
	content, ok := m.files[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MockSFTPClient) Close() error {
	m.closed = true
	return nil
}

// Helper methods for testing
func (m *MockSFTPClient) SetFile(path string, content []byte) {
	m.files[path] = content
}

func (m *MockSFTPClient) SetOpenError(err error) {
	m.openError = err
}

func (m *MockSFTPClient) SetCreateError(err error) {
	m.createError = err
}

// GetFile returns the stored content for path.
func (m *MockSFTPClient) GetFile(path string) ([]byte, bool) {
	content, ok := m.files[path]
	return content, ok
}

type mockSFTPFile struct {
	client *MockSFTPClient
	path   string
	buf    bytes.Buffer
}

func (f *mockSFTPFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *mockSFTPFile) Close() error {
	f.client.files[f.path] = f.buf.Bytes()
	return nil
}
