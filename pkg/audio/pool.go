// ABOUTME: Producer and consumer buffer pools with blocking and non-blocking take/give
// ABOUTME: Pools route application take/give through the pool's Connection
package audio

// PoolRole says which side of a connection a pool serves.
type PoolRole uint8

const (
	// PoolProducer pools are filled by the application.
	PoolProducer PoolRole = iota
	// PoolConsumer pools are drained by an output engine.
	PoolConsumer
)

// Queue capacity headroom over the pool's own buffer count, for buffers
// queued onto a pool before it is bound. CompleteConnection re-sizes both
// pools' queues to hold every buffer of the bound pair, since pass-through
// connections route one pool's buffers through the other's queues.
const poolQueueSlack = 16

// BufferPool manages the lifecycle of a fixed set of audio buffers. The free
// list holds buffers ready to be filled; the ready queue holds buffers
// carrying samples waiting to be consumed. Both are single-producer /
// single-consumer in steady state: the application on one side, the output
// engine's completion interrupt on the other. Channels provide the ordering
// guarantees interrupt masking provides on bare metal.
type BufferPool struct {
	Format       *Format
	BufferFormat *BufferFormat
	Role         PoolRole

	count int
	free  chan *Buffer
	ready chan *Buffer
	conn  Connection
}

// NewProducerPool creates a pool of count buffers of samplesPerBuffer frames
// each, all starting on the free list. The application takes free buffers,
// fills them and gives them back; the connection decides where they go.
func NewProducerPool(format *BufferFormat, count, samplesPerBuffer int) *BufferPool {
	return newPool(format, PoolProducer, count, samplesPerBuffer)
}

// NewConsumerPool creates the pool an output engine drains. count may be zero
// for pass-through connections, where the consumer pool only queues buffers
// owned by the producer side.
func NewConsumerPool(format *BufferFormat, count, samplesPerBuffer int) *BufferPool {
	return newPool(format, PoolConsumer, count, samplesPerBuffer)
}

func newPool(format *BufferFormat, role PoolRole, count, samplesPerBuffer int) *BufferPool {
	p := &BufferPool{
		Format:       format.Format,
		BufferFormat: format,
		Role:         role,
		count:        count,
		free:         make(chan *Buffer, count+poolQueueSlack),
		ready:        make(chan *Buffer, count+poolQueueSlack),
	}
	for i := 0; i < count; i++ {
		p.free <- NewBuffer(format, samplesPerBuffer)
	}
	return p
}

// grow widens both queues to capacity, keeping queued buffers in order. Any
// larger existing capacity is kept. Called while the pool is quiescent, from
// CompleteConnection.
func (p *BufferPool) grow(capacity int) {
	if cap(p.free) >= capacity {
		return
	}
	p.free = growQueue(p.free, capacity)
	p.ready = growQueue(p.ready, capacity)
}

func growQueue(q chan *Buffer, capacity int) chan *Buffer {
	next := make(chan *Buffer, capacity)
	for {
		select {
		case b := <-q:
			next <- b
		default:
			return next
		}
	}
}

// Connection returns the connection this pool is bound to, or nil.
func (p *BufferPool) Connection() Connection {
	return p.conn
}

// Take acquires a buffer from the pool through its connection. For a producer
// pool this is a free buffer to fill; for a consumer pool it is the next
// buffer of samples to play. With block set it waits until one is available;
// otherwise it returns nil immediately on an empty pool.
//
// Non-blocking take is safe from the completion-interrupt context; blocking
// take must only be used from normal context.
func (p *BufferPool) Take(block bool) *Buffer {
	if p.conn == nil {
		panic("audio: pool is not connected")
	}
	if p.Role == PoolProducer {
		return p.conn.ProducerTake(block)
	}
	return p.conn.ConsumerTake(block)
}

// Give releases a buffer back through the pool's connection. For a producer
// pool the buffer carries samples and moves toward the consumer side; for a
// consumer pool the buffer has been played and returns to a free list.
func (p *BufferPool) Give(b *Buffer) {
	if p.conn == nil {
		panic("audio: pool is not connected")
	}
	if p.Role == PoolProducer {
		p.conn.ProducerGive(b)
		return
	}
	p.conn.ConsumerGive(b)
}

// TakeFree removes a buffer from the pool's free list, bypassing the
// connection. Returns nil when empty unless block is set.
func (p *BufferPool) TakeFree(block bool) *Buffer {
	return takeFrom(p.free, block)
}

// TakeReady removes a buffer from the pool's ready queue, bypassing the
// connection. Returns nil when empty unless block is set.
func (p *BufferPool) TakeReady(block bool) *Buffer {
	return takeFrom(p.ready, block)
}

// QueueFree puts a buffer on the pool's free list.
func (p *BufferPool) QueueFree(b *Buffer) {
	queueTo(p.free, b)
}

// QueueReady puts a buffer carrying samples on the pool's ready queue.
func (p *BufferPool) QueueReady(b *Buffer) {
	queueTo(p.ready, b)
}

// FreeCount reports how many buffers sit on the free list.
func (p *BufferPool) FreeCount() int {
	return len(p.free)
}

// ReadyCount reports how many buffers sit on the ready queue.
func (p *BufferPool) ReadyCount() int {
	return len(p.ready)
}

func takeFrom(q chan *Buffer, block bool) *Buffer {
	if block {
		return <-q
	}
	select {
	case b := <-q:
		return b
	default:
		return nil
	}
}

func queueTo(q chan *Buffer, b *Buffer) {
	if b == nil {
		panic("audio: queueing nil buffer")
	}
	select {
	case q <- b:
	default:
		// A full queue means a buffer was given twice or crossed pools.
		panic("audio: buffer queue overflow, ownership violated")
	}
}
