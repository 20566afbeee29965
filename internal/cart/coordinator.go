package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"Storefront/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status 远端同步状态
type Status int

const (
	StatusIdle    Status = iota // 与远端一致
	StatusDirty                 // 有本地变更等待写回
	StatusWriting               // 写回中
)

func (s Status) String() string {
	switch s {
	case StatusDirty:
		return "dirty"
	case StatusWriting:
		return "writing"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Options struct {
	Debounce      time.Duration // 防抖静默窗口
	WriteTimeout  time.Duration
	FetchTimeout  time.Duration
	FetchAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
	MaxFailures   int // 连续失败多少次后提示“修改可能未保存”
	MaxQuantity   int // 单行数量上限
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 3 * time.Second
	}
	if o.FetchAttempts <= 0 {
		o.FetchAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 5
	}
	o.MaxQuantity = quantityLimit(o.MaxQuantity)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Snapshot 对外暴露的只读视图
type Snapshot struct {
	Identity Identity `json:"identity"`
	Cart     Cart     `json:"cart"`
	Status   Status   `json:"status"`
	Warning  bool     `json:"warning"` // 连续同步失败，修改可能未保存
	Failures int      `json:"failures"`
}

type result struct {
	snap Snapshot
	err  error
}

type (
	dispatchMsg struct {
		expect Identity
		action Action
		reply  chan result
	}
	snapshotMsg struct {
		reply chan Snapshot
	}
	identityMsg struct {
		id    Identity
		reply chan result
	}
	timerMsg struct {
		gen uint64
		seq uint64
	}
	fetchDoneMsg struct {
		gen    uint64
		remote Cart
		ok     bool
		err    error
	}
	writeDoneMsg struct {
		gen     uint64
		stamp   int64
		applied bool
		err     error
	}
	subscribedMsg struct {
		gen uint64
		sub Subscription
		err error
	}
	subLostMsg struct {
		gen uint64
	}
	resubscribeMsg struct {
		gen uint64
	}
	remoteMsg struct {
		gen    uint64
		update RemoteUpdate
	}
	watchMsg struct {
		ch     chan Snapshot
		remove bool
	}
)

// Coordinator 单个会话的购物车同步 actor。
// 所有状态只在 loop 协程中读写，外部通过 inbox 投递消息
type Coordinator struct {
	remote RemoteStore
	local  *LocalPersistence
	opts   Options
	logger *zap.Logger
	origin string

	inbox     chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	active    atomic.Int64

	// 以下字段只属于 loop 协程
	identity    Identity
	cart        Cart
	gen         uint64
	lastStamp   int64
	dirty       bool
	writing     bool
	rewrite     bool
	booting     bool
	failures    int
	timer       *time.Timer
	timerSeq    uint64
	subTimer    *time.Timer
	subFailures int
	sub         Subscription
	sessCtx     context.Context
	sessCancel  context.CancelFunc
	migrateFrom *Identity
	bootReplies []chan result
	watchers    map[chan Snapshot]struct{}
}

func NewCoordinator(remote RemoteStore, local *LocalPersistence, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		remote:   remote,
		local:    local,
		opts:     opts.withDefaults(),
		origin:   uuid.NewString(),
		inbox:    make(chan any, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		watchers: make(map[chan Snapshot]struct{}),
	}
	c.logger = logger.With(zap.String("origin", c.origin))
	c.touch()
	activeSessions.Inc()
	go c.loop()
	return c
}

// Origin 本协调器写入远端时携带的标记，用于识别自己写入的回声
func (c *Coordinator) Origin() string {
	return c.origin
}

// LastActive 最近一次被调用的时间
func (c *Coordinator) LastActive() time.Time {
	return time.UnixMilli(c.active.Load())
}

func (c *Coordinator) touch() {
	c.active.Store(time.Now().UnixMilli())
}

// Dispatch 校验并应用一次用户变更，作用于协调器当前的身份，返回变更后的快照
func (c *Coordinator) Dispatch(ctx context.Context, action Action) (Snapshot, error) {
	return c.DispatchAs(ctx, Identity{}, action)
}

// DispatchAs 与 Dispatch 相同，但只在当前身份等于 expect 时生效，
// 否则返回 ErrIdentityRace，保证变更不会落到别的身份下
func (c *Coordinator) DispatchAs(ctx context.Context, expect Identity, action Action) (Snapshot, error) {
	if err := Validate(action, c.opts.MaxQuantity); err != nil {
		return Snapshot{}, err
	}
	c.touch()
	reply := make(chan result, 1)
	if err := c.send(ctx, dispatchMsg{expect: expect, action: action, reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return c.wait(ctx, reply)
}

// SetIdentity 切换身份。先拆除旧会话（定时器、订阅），再引导新身份；
// 已登录身份会等到远端拉取结束（成功或回退到本地）才返回
func (c *Coordinator) SetIdentity(ctx context.Context, id Identity) (Snapshot, error) {
	if id.IsZero() {
		return Snapshot{}, ErrNoIdentity
	}
	c.touch()
	reply := make(chan result, 1)
	if err := c.send(ctx, identityMsg{id: id, reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return c.wait(ctx, reply)
}

func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	c.touch()
	reply := make(chan Snapshot, 1)
	if err := c.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrClosed
	}
}

// Watch 订阅快照变化。通道只保留最新一份，消费慢时中间状态会被跳过
func (c *Coordinator) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	if err := c.send(context.Background(), watchMsg{ch: ch}); err != nil {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_ = c.send(context.Background(), watchMsg{ch: ch, remove: true})
		})
	}
}

// Follow 跟随外部身份源：先同步到当前身份，之后的变更在后台转发
func (c *Coordinator) Follow(ctx context.Context, provider IdentityProvider) error {
	changes := provider.Changes()
	if id := provider.Current(); !id.IsZero() {
		if _, err := c.SetIdentity(ctx, id); err != nil {
			return err
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case id, ok := <-changes:
				if !ok {
					return
				}
				if _, err := c.SetIdentity(ctx, id); err != nil && !errors.Is(err, ErrIdentityRace) {
					c.logger.Warn("follow identity", zap.String("identity", id.Key()), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Close 拆除当前会话并停止 actor，可重复调用
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
		activeSessions.Dec()
	})
}

// Done 协调器退出后关闭
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) send(ctx context.Context, m any) error {
	select {
	case c.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// post 后台协程回投消息，协调器退出后直接丢弃
func (c *Coordinator) post(m any) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

func (c *Coordinator) wait(ctx context.Context, reply chan result) (Snapshot, error) {
	select {
	case r := <-reply:
		return r.snap, r.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrClosed
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.teardown()
			for ch := range c.watchers {
				close(ch)
			}
			c.watchers = nil
			return
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

func (c *Coordinator) handle(m any) {
	switch m := m.(type) {
	case dispatchMsg:
		m.reply <- c.onDispatch(m.expect, m.action)
	case snapshotMsg:
		m.reply <- c.snapshot()
	case identityMsg:
		c.onIdentity(m.id, m.reply)
	case timerMsg:
		c.onTimer(m)
	case fetchDoneMsg:
		c.onFetchDone(m)
	case writeDoneMsg:
		c.onWriteDone(m)
	case subscribedMsg:
		c.onSubscribed(m)
	case subLostMsg:
		c.onSubLost(m)
	case resubscribeMsg:
		if m.gen == c.gen && c.sub == nil {
			c.subscribe()
		}
	case remoteMsg:
		c.onRemote(m)
	case watchMsg:
		if m.remove {
			if _, ok := c.watchers[m.ch]; ok {
				delete(c.watchers, m.ch)
				close(m.ch)
			}
			return
		}
		c.watchers[m.ch] = struct{}{}
		if !c.identity.IsZero() {
			m.ch <- c.snapshot()
		}
	}
}

func (c *Coordinator) snapshot() Snapshot {
	status := StatusIdle
	switch {
	case c.writing:
		status = StatusWriting
	case c.dirty:
		status = StatusDirty
	}
	return Snapshot{
		Identity: c.identity,
		Cart:     c.cart.Clone(),
		Status:   status,
		Warning:  c.failures >= c.opts.MaxFailures,
		Failures: c.failures,
	}
}

func (c *Coordinator) broadcast() {
	if len(c.watchers) == 0 {
		return
	}
	snap := c.snapshot()
	for ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// nextStamp 严格单调递增，且大于见过的所有远端时间戳
func (c *Coordinator) nextStamp() int64 {
	now := c.opts.Now().UnixMilli()
	if now <= c.lastStamp {
		now = c.lastStamp + 1
	}
	c.lastStamp = now
	return now
}

func (c *Coordinator) observe(ts int64) {
	if ts > c.lastStamp {
		c.lastStamp = ts
	}
}

func (c *Coordinator) saveLocal() {
	if c.local == nil || c.identity.IsZero() {
		return
	}
	if err := c.local.Save(c.identity, c.cart); err != nil {
		c.logger.Warn("save local cart", zap.String("identity", c.identity.Key()), zap.Error(err))
	}
}

func (c *Coordinator) onDispatch(expect Identity, action Action) result {
	if c.identity.IsZero() {
		return result{err: ErrNoIdentity}
	}
	if !expect.IsZero() && expect != c.identity {
		return result{err: ErrIdentityRace}
	}
	if err := ValidateAgainst(c.cart, action, c.opts.MaxQuantity); err != nil {
		return result{err: err}
	}

	c.cart = Reduce(c.cart, stamp(action, c.nextStamp()))
	c.saveLocal()

	if c.identity.Authenticated {
		c.dirty = true
		c.resetTimer(c.opts.Debounce)
	}
	c.broadcast()
	return result{snap: c.snapshot()}
}

// teardown 取消防抖定时器、关闭订阅、作废旧会话的所有在途事件
func (c *Coordinator) teardown() {
	c.stopTimer()
	if c.subTimer != nil {
		c.subTimer.Stop()
		c.subTimer = nil
	}
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			c.logger.Debug("close subscription", zap.Error(err))
		}
		c.sub = nil
	}
	if c.sessCancel != nil {
		c.sessCancel()
		c.sessCancel = nil
	}
	for _, r := range c.bootReplies {
		r <- result{err: ErrIdentityRace}
	}
	c.bootReplies = nil
	c.gen++
	c.dirty = false
	c.writing = false
	c.rewrite = false
	c.booting = false
	c.failures = 0
	c.subFailures = 0
	c.migrateFrom = nil
}

func (c *Coordinator) onIdentity(id Identity, reply chan result) {
	if id == c.identity {
		if c.booting {
			c.bootReplies = append(c.bootReplies, reply)
			return
		}
		reply <- result{snap: c.snapshot()}
		return
	}

	prev := c.identity
	c.teardown()
	c.identity = id
	c.cart = Cart{Items: []Item{}}
	c.sessCtx, c.sessCancel = context.WithCancel(context.Background())

	c.logger.Debug("identity changed", zap.String("from", prev.Key()), zap.String("to", id.Key()))

	// 1. 匿名身份只读本地
	if !id.Authenticated {
		c.cart = c.loadLocal(id)
		c.observe(c.cart.LastUpdated)
		c.broadcast()
		reply <- result{snap: c.snapshot()}
		return
	}

	// 2. 匿名 -> 登录：非空的匿名购物车作为待迁移输入，先作为临时视图
	if !prev.IsZero() && !prev.Authenticated {
		if anon := c.loadLocal(prev); !anon.IsEmpty() {
			from := prev
			c.migrateFrom = &from
			c.cart = anon
		}
	}

	// 3. 否则先用登录身份的本地镜像兜底
	if c.migrateFrom == nil {
		c.cart = c.loadLocal(id)
	}
	c.observe(c.cart.LastUpdated)

	// 4. 后台拉取远端，完成后再回复调用方
	c.booting = true
	c.bootReplies = append(c.bootReplies, reply)
	c.broadcast()
	go c.fetch(c.sessCtx, c.gen, id)
}

func (c *Coordinator) loadLocal(id Identity) Cart {
	if c.local == nil {
		return Cart{Items: []Item{}}
	}
	cart, ok, err := c.local.Load(id)
	if err != nil {
		c.logger.Warn("load local cart", zap.String("identity", id.Key()), zap.Error(err))
	}
	if !ok {
		return Cart{Items: []Item{}}
	}
	return cart
}

// fetch 带超时和退避重试的远端读取
func (c *Coordinator) fetch(ctx context.Context, gen uint64, id Identity) {
	var err error
	for attempt := 1; attempt <= c.opts.FetchAttempts; attempt++ {
		fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
		remote, ok, ferr := c.remote.Fetch(fctx, id)
		cancel()
		if ferr == nil {
			c.post(fetchDoneMsg{gen: gen, remote: remote, ok: ok})
			return
		}
		err = ferr
		if attempt == c.opts.FetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(utils.Backoff(c.opts.RetryBase, c.opts.RetryMax, attempt)):
		}
	}
	c.post(fetchDoneMsg{gen: gen, err: &SyncFailure{Op: "fetch", Err: err}})
}

func (c *Coordinator) onFetchDone(m fetchDoneMsg) {
	if m.gen != c.gen {
		c.logger.Debug("discard fetch", zap.Error(ErrIdentityRace))
		return
	}
	booting := c.booting
	c.booting = false

	if m.err != nil {
		c.logger.Warn("fetch remote cart, fall back to local", zap.String("identity", c.identity.Key()), zap.Error(m.err))
	}
	if m.ok {
		c.observe(m.remote.LastUpdated)
	}

	switch {
	case c.migrateFrom != nil:
		// 迁移：匿名购物车整体替换远端视图，不做逐项合并，价格和库存在结算时重新校验。
		// 时间戳盖过已观测到的远端版本；匿名本地副本等第一次写入生效后再清除
		c.cart = Reduce(c.cart, stamp(LoadCart{Snapshot: c.cart}, c.nextStamp()))
		c.markDirty()
	case m.ok && m.remote.LastUpdated > c.cart.LastUpdated:
		c.cart = Reduce(c.cart, LoadCart{Snapshot: Normalize(m.remote)})
		c.dirty = false
		c.rewrite = false
		c.stopTimer()
	case m.ok && m.remote.LastUpdated < c.cart.LastUpdated:
		c.markDirty()
	case m.err == nil && !m.ok && !c.cart.IsEmpty():
		c.markDirty()
	case c.dirty:
		// 引导期间产生的变更，定时器在引导时被忽略，这里补上
		c.resetTimer(c.opts.Debounce)
	}
	c.saveLocal()
	c.broadcast()

	for _, r := range c.bootReplies {
		r <- result{snap: c.snapshot()}
	}
	c.bootReplies = nil

	if booting {
		c.subscribe()
	}
}

func (c *Coordinator) markDirty() {
	c.dirty = true
	c.resetTimer(c.opts.Debounce)
}

func (c *Coordinator) resetTimer(d time.Duration) {
	c.stopTimer()
	c.timerSeq++
	gen, seq := c.gen, c.timerSeq
	c.timer = time.AfterFunc(d, func() {
		c.post(timerMsg{gen: gen, seq: seq})
	})
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// 已经触发但还在 inbox 里的旧消息靠 seq 作废
	c.timerSeq++
}

func (c *Coordinator) onTimer(m timerMsg) {
	if m.gen != c.gen || m.seq != c.timerSeq {
		return
	}
	c.timer = nil
	if !c.dirty || c.booting {
		return
	}
	if c.writing {
		c.rewrite = true
		return
	}
	c.startWrite()
}

// startWrite 同一时刻最多一个在途写入
func (c *Coordinator) startWrite() {
	c.dirty = false
	c.rewrite = false
	c.writing = true

	ctx, gen, id, doc := c.sessCtx, c.gen, c.identity, c.cart.Clone()
	go func() {
		wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
		defer cancel()
		applied, err := c.remote.Write(wctx, id, doc, c.origin)
		c.post(writeDoneMsg{gen: gen, stamp: doc.LastUpdated, applied: applied, err: err})
	}()
	c.broadcast()
}

func (c *Coordinator) onWriteDone(m writeDoneMsg) {
	if m.gen != c.gen {
		c.logger.Debug("discard write result", zap.Error(ErrIdentityRace))
		return
	}
	c.writing = false

	if m.err != nil {
		remoteWritesTotal.WithLabelValues("error").Inc()
		c.failures++
		// 写入期间被远端更新覆盖的话就不用再重试这份旧数据了
		if c.dirty || c.cart.LastUpdated == m.stamp {
			c.dirty = true
		}
		c.rewrite = false
		c.logger.Warn("cart write-back failed",
			zap.String("identity", c.identity.Key()),
			zap.Int("failures", c.failures),
			zap.Error(&SyncFailure{Op: "write", Err: m.err}),
		)
		if c.dirty {
			c.resetTimer(utils.Backoff(c.opts.RetryBase, c.opts.RetryMax, c.failures))
		}
		c.broadcast()
		return
	}

	c.failures = 0
	if !m.applied {
		// 远端已有更新的文档，重新拉取。迁移未完成时拉取结束后会以更大的时间戳重写迁移内容，否则以远端为准
		remoteWritesTotal.WithLabelValues("rejected").Inc()
		go c.fetch(c.sessCtx, c.gen, c.identity)
	} else {
		remoteWritesTotal.WithLabelValues("ok").Inc()
		c.finishMigration()
	}

	if c.dirty && c.rewrite {
		c.startWrite()
		return
	}
	c.broadcast()
}

// finishMigration 迁移内容已写入远端，清除匿名本地副本
func (c *Coordinator) finishMigration() {
	if c.migrateFrom == nil {
		return
	}
	if c.local != nil {
		if err := c.local.Clear(*c.migrateFrom); err != nil {
			c.logger.Warn("clear anonymous cart", zap.Error(err))
		}
	}
	c.logger.Info("anonymous cart migrated",
		zap.String("from", c.migrateFrom.Key()),
		zap.String("to", c.identity.Key()),
		zap.Int("items", len(c.cart.Items)),
	)
	c.migrateFrom = nil
}

func (c *Coordinator) subscribe() {
	ctx, gen, id := c.sessCtx, c.gen, c.identity
	go func() {
		sub, err := c.remote.Subscribe(ctx, id)
		c.post(subscribedMsg{gen: gen, sub: sub, err: err})
	}()
}

func (c *Coordinator) onSubscribed(m subscribedMsg) {
	if m.gen != c.gen {
		if m.sub != nil {
			_ = m.sub.Close()
		}
		return
	}
	if m.err != nil {
		c.subFailures++
		c.logger.Warn("subscribe remote cart", zap.Int("failures", c.subFailures),
			zap.Error(&SyncFailure{Op: "subscribe", Err: m.err}))
		c.scheduleResubscribe()
		return
	}

	c.subFailures = 0
	c.sub = m.sub
	gen := m.gen
	go func() {
		for u := range m.sub.Updates() {
			c.post(remoteMsg{gen: gen, update: u})
		}
		c.post(subLostMsg{gen: gen})
	}()
}

func (c *Coordinator) scheduleResubscribe() {
	gen := c.gen
	d := utils.Backoff(c.opts.RetryBase, c.opts.RetryMax, c.subFailures)
	c.subTimer = time.AfterFunc(d, func() {
		c.post(resubscribeMsg{gen: gen})
	})
}

func (c *Coordinator) onSubLost(m subLostMsg) {
	if m.gen != c.gen || c.sub == nil {
		return
	}
	c.sub = nil
	c.subFailures++
	c.logger.Warn("cart subscription lost", zap.String("identity", c.identity.Key()))
	c.scheduleResubscribe()
}

func (c *Coordinator) onRemote(m remoteMsg) {
	if m.gen != c.gen {
		remoteUpdatesTotal.WithLabelValues("stale_identity").Inc()
		c.logger.Debug("discard remote update", zap.Error(ErrIdentityRace))
		return
	}
	if m.update.Origin == c.origin {
		remoteUpdatesTotal.WithLabelValues("echo").Inc()
		return
	}
	if m.update.Cart.LastUpdated <= c.cart.LastUpdated {
		remoteUpdatesTotal.WithLabelValues("older").Inc()
		return
	}

	c.observe(m.update.Cart.LastUpdated)
	if c.migrateFrom != nil {
		// 迁移内容还没写进远端，保持迁移视图，用更大的时间戳重写
		remoteUpdatesTotal.WithLabelValues("migrating").Inc()
		c.cart = Reduce(c.cart, stamp(LoadCart{Snapshot: c.cart}, c.nextStamp()))
		c.saveLocal()
		if !c.writing {
			c.markDirty()
		} else {
			c.dirty, c.rewrite = true, true
		}
		c.broadcast()
		return
	}

	remoteUpdatesTotal.WithLabelValues("applied").Inc()
	c.cart = Reduce(c.cart, LoadCart{Snapshot: Normalize(m.update.Cart)})
	c.dirty = false
	c.rewrite = false
	c.stopTimer()
	c.saveLocal()
	c.broadcast()
}
