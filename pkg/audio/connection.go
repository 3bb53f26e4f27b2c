// ABOUTME: Connection abstraction moving buffers from producer pools to consumer pools
// ABOUTME: Provides pass-through, copy-on-take and copy-on-give variants
package audio

// Connection is the four-operation capability set that moves buffers between
// the two pools it binds. The producer-side operations serve the filling
// application; the consumer-side operations serve the output engine. A
// connection is stateless after CompleteConnection: all four operations may
// be called without further setup, and the non-blocking forms are safe from
// interrupt context.
type Connection interface {
	// ProducerTake acquires an empty buffer for the application to fill.
	ProducerTake(block bool) *Buffer
	// ProducerGive hands a filled buffer to the connection.
	ProducerGive(b *Buffer)
	// ConsumerTake acquires the next buffer of samples to output.
	ConsumerTake(block bool) *Buffer
	// ConsumerGive returns a played buffer to the connection.
	ConsumerGive(b *Buffer)
	// Bind attaches the two pools. Called by CompleteConnection.
	Bind(producer, consumer *BufferPool)
}

// Link is the common core of every connection: the bound pool pair. Embed it
// to get Bind and the default per-side operations.
type Link struct {
	Producer *BufferPool
	Consumer *BufferPool
}

// Bind attaches the producer and consumer pools.
func (l *Link) Bind(producer, consumer *BufferPool) {
	l.Producer = producer
	l.Consumer = consumer
}

// ProducerTakeDefault takes a buffer from the producer's free list.
func (l *Link) ProducerTakeDefault(block bool) *Buffer {
	return l.Producer.TakeFree(block)
}

// ProducerGiveDefault queues a filled buffer on the producer's ready queue.
func (l *Link) ProducerGiveDefault(b *Buffer) {
	l.Producer.QueueReady(b)
}

// ConsumerTakeDefault takes the next ready buffer from the consumer pool.
func (l *Link) ConsumerTakeDefault(block bool) *Buffer {
	return l.Consumer.TakeReady(block)
}

// ConsumerGiveDefault returns a played buffer to the consumer's free list.
func (l *Link) ConsumerGiveDefault(b *Buffer) {
	l.Consumer.QueueFree(b)
}

// CompleteConnection binds producer and consumer pools into the connection
// and routes both pools' Take/Give through it. Rebinding a producer to a new
// connection is allowed; the previous consumer pool must no longer be in use.
//
// Both pools' queues are widened to hold every buffer of the pair: a
// pass-through connection routes producer buffers through the consumer's
// ready queue, so either side may transiently hold them all.
func CompleteConnection(c Connection, producer, consumer *BufferPool) {
	total := producer.count + consumer.count + poolQueueSlack
	producer.grow(total)
	consumer.grow(total)
	c.Bind(producer, consumer)
	producer.conn = c
	consumer.conn = c
}

// PassthroughConnection hands buffers straight from the producer pool to the
// consumer side with no copy: a filled producer buffer is queued on the
// consumer's ready queue, and returns to the producer's free list once
// played. Formats on both sides must already match.
type PassthroughConnection struct {
	Link
}

func (c *PassthroughConnection) ProducerTake(block bool) *Buffer {
	return c.ProducerTakeDefault(block)
}

func (c *PassthroughConnection) ProducerGive(b *Buffer) {
	c.Consumer.QueueReady(b)
}

func (c *PassthroughConnection) ConsumerTake(block bool) *Buffer {
	return c.ConsumerTakeDefault(block)
}

func (c *PassthroughConnection) ConsumerGive(b *Buffer) {
	c.Producer.QueueFree(b)
}

// CopyOnTakeConnection converts samples when the consumer side pulls: a
// consumer take grabs a free consumer buffer and the next ready producer
// buffer, converts producer into consumer, and returns the producer buffer
// immediately. The conversion therefore runs in the consumer's context, which
// in steady state is the completion interrupt, so Convert must be cheap.
type CopyOnTakeConnection struct {
	Link
	Convert ConvertFunc
}

func (c *CopyOnTakeConnection) ProducerTake(block bool) *Buffer {
	return c.ProducerTakeDefault(block)
}

func (c *CopyOnTakeConnection) ProducerGive(b *Buffer) {
	c.ProducerGiveDefault(b)
}

func (c *CopyOnTakeConnection) ConsumerTake(block bool) *Buffer {
	dst := c.Consumer.TakeFree(block)
	if dst == nil {
		return nil
	}
	src := c.Producer.TakeReady(block)
	if src == nil {
		c.Consumer.QueueFree(dst)
		return nil
	}
	c.Convert(dst, src)
	c.Producer.QueueFree(src)
	return dst
}

func (c *CopyOnTakeConnection) ConsumerGive(b *Buffer) {
	c.ConsumerGiveDefault(b)
}

// CopyOnGiveConnection converts samples when the producer side pushes: the
// application's give blocks until a free consumer buffer is available,
// converts into it, queues it ready, and frees the producer buffer. The
// blocking wait makes this variant unusable from interrupt context; it gives
// the application natural backpressure instead.
type CopyOnGiveConnection struct {
	Link
	Convert ConvertFunc
}

func (c *CopyOnGiveConnection) ProducerTake(block bool) *Buffer {
	return c.ProducerTakeDefault(block)
}

func (c *CopyOnGiveConnection) ProducerGive(b *Buffer) {
	dst := c.Consumer.TakeFree(true)
	c.Convert(dst, b)
	c.Consumer.QueueReady(dst)
	c.Producer.QueueFree(b)
}

func (c *CopyOnGiveConnection) ConsumerTake(block bool) *Buffer {
	return c.ConsumerTakeDefault(block)
}

func (c *CopyOnGiveConnection) ConsumerGive(b *Buffer) {
	c.ConsumerGiveDefault(b)
}
