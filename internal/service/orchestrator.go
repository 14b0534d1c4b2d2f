// Package service contains the search orchestration core: request
// deduplication, credit-metered pagination, grid deep scans and the
// caching tiers that sit between the HTTP surface and the provider.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-generator/search/internal/cache"
	"github.com/octobees/leads-generator/search/internal/coordination"
	"github.com/octobees/leads-generator/search/internal/entity"
	"github.com/octobees/leads-generator/search/internal/places"
	"github.com/octobees/leads-generator/search/internal/repository"
)

var (
	// ErrSearchBusy means an identical search is already running and its
	// result did not land within the wait budget.
	ErrSearchBusy = errors.New("identical search already in progress")
	// ErrCacheExpired means a deep-search continuation token outlived the
	// cached result set it pages over.
	ErrCacheExpired = errors.New("search results expired, start a new search")
	// ErrRateLimited means the per-user search budget is exhausted.
	ErrRateLimited = errors.New("search rate limit exceeded")
	// ErrTerminalToken means the supplied page token marks the end of
	// pagination and cannot be continued.
	ErrTerminalToken = errors.New("page token is terminal")
)

// Sentinel tokens returned in place of a provider continuation token when
// pagination cannot proceed. Clients must not send them back.
const (
	TokenGoogleLimit = "google_limit_reached"
	TokenPlanLimit   = "plan_limit_reached"
)

const (
	pageCost       = 1
	deepSearchCost = 10

	deepPageSize    = 20
	deepTokenPrefix = "deep:"

	// The provider never serves more than 60 results for one text query.
	googleResultCeiling = 60

	// Boost thresholds: remaining balance unlocks wider deep scans.
	boostFirstThreshold  = 50
	boostSecondThreshold = 200
	maxGridSizeBoosted   = 12
	maxPagesBoosted      = 10

	lockTTL       = 30 * time.Second
	trackerTTL    = 2 * time.Minute
	contendWait   = 1500 * time.Millisecond
	contendPoll   = 100 * time.Millisecond
	hotResultTTL  = 15 * time.Minute
	durableTTL    = 24 * time.Hour
	deepListTTL   = 24 * time.Hour
	sessionTTL    = time.Hour
	jobStatusTTL  = time.Hour
)

// Job lifecycle states stored under job:status:<id>.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Result type discriminator: a fresh execution versus a cache hit.
const (
	ResultTypeJob    = "JOB"
	ResultTypeCached = "CACHED"
)

// PlacesSearcher is the provider gateway surface the orchestrator needs.
type PlacesSearcher interface {
	SearchText(ctx context.Context, query string, opts places.SearchOptions) (places.Page, error)
	ScanCity(ctx context.Context, query string, vp entity.Viewport, opts places.ScanOptions) []entity.Place
}

// TaskPool runs search jobs on a bounded worker pool.
type TaskPool interface {
	Submit(task func()) error
}

// SearchRequest is a validated, normalized search invocation.
type SearchRequest struct {
	UserID     uuid.UUID
	City       string
	Keyword    string
	DeepSearch bool
	PageToken  string
}

// SearchResult is one logical result page.
type SearchResult struct {
	Type          string         `json:"type"`
	JobID         string         `json:"job_id"`
	Places        []entity.Place `json:"places"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	Cached        bool           `json:"cached,omitempty"`
}

// JobStatus is the externally visible state of a search job.
type JobStatus struct {
	Status string        `json:"status"`
	Result *SearchResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Store       *cache.Store
	Locks       *coordination.Lock
	UserLimiter *coordination.SlidingWindowLimiter
	Gateway     PlacesSearcher
	Places      repository.PlacesRepository
	Billing     repository.BillingRepository
	Durable     repository.SearchCacheRepository
	Enricher    EnrichmentClient
	Pool        TaskPool
}

// Orchestrator coordinates the full life of a search request.
type Orchestrator struct {
	store       *cache.Store
	locks       *coordination.Lock
	userLimiter *coordination.SlidingWindowLimiter
	gateway     PlacesSearcher
	placesRepo  repository.PlacesRepository
	billing     repository.BillingRepository
	durable     repository.SearchCacheRepository
	enricher    EnrichmentClient
	pool        TaskPool
	plans       map[string]entity.Plan
}

// NewOrchestrator creates a new instance of Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		store:       deps.Store,
		locks:       deps.Locks,
		userLimiter: deps.UserLimiter,
		gateway:     deps.Gateway,
		placesRepo:  deps.Places,
		billing:     deps.Billing,
		durable:     deps.Durable,
		enricher:    deps.Enricher,
		pool:        deps.Pool,
		plans:       entity.DefaultPlans(),
	}
}

// Search runs one search invocation end to end: cache lookup, duplicate
// suppression, provider work, billing, persistence. Identical concurrent
// requests collapse onto a single execution; losers receive the winner's
// cached result.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.PageToken == TokenGoogleLimit || req.PageToken == TokenPlanLimit {
		return nil, ErrTerminalToken
	}

	if o.userLimiter != nil {
		allowed, err := o.userLimiter.Allow(ctx, "user:"+req.UserID.String())
		if err != nil {
			log.Printf("level=warn msg=\"rate limiter unavailable, allowing request\" user_id=%s err=%q", req.UserID, err)
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	sig := signature(req)
	if result := o.cachedResult(ctx, sig); result != nil {
		return result, nil
	}

	token, acquired, err := o.locks.Acquire(ctx, lockKey(sig), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire search lock: %w", err)
	}
	if !acquired {
		return o.awaitWinner(ctx, sig)
	}
	defer o.locks.Release(ctx, lockKey(sig), token)

	// Double check under the lock: the previous holder may have finished
	// between our cache miss and the acquire.
	if result := o.cachedResult(ctx, sig); result != nil {
		return result, nil
	}
	// A live tracker with the lock free means the registered job outlived its
	// lock TTL and is still running. Hand back its id instead of starting a
	// duplicate execution.
	if runningID, ok, err := o.store.Get(ctx, trackerKey(sig)); err == nil && ok {
		return &SearchResult{Type: ResultTypeJob, JobID: runningID}, nil
	}

	jobID := uuid.NewString()
	if err := o.store.Set(ctx, trackerKey(sig), jobID, trackerTTL); err != nil {
		log.Printf("level=warn msg=\"set search tracker\" signature=%s err=%q", sig, err)
	}
	defer func() {
		if err := o.store.Delete(context.WithoutCancel(ctx), trackerKey(sig)); err != nil {
			log.Printf("level=warn msg=\"clear search tracker\" signature=%s err=%q", sig, err)
		}
	}()

	return o.runJob(ctx, jobID, sig, req)
}

// runJob executes the search core on the worker pool, falling back to the
// calling goroutine when the pool is saturated. The caller blocks either way;
// the pool exists to bound how much provider work runs at once.
func (o *Orchestrator) runJob(ctx context.Context, jobID, sig string, req SearchRequest) (*SearchResult, error) {
	o.setJobStatus(ctx, jobID, JobStatus{Status: JobStatusPending})

	var (
		result  *SearchResult
		coreErr error
	)
	done := make(chan struct{})
	task := func() {
		defer close(done)
		o.setJobStatus(ctx, jobID, JobStatus{Status: JobStatusProcessing})
		result, coreErr = o.executeSearchCore(ctx, jobID, sig, req)
	}

	if err := o.pool.Submit(task); err != nil {
		log.Printf("level=warn msg=\"worker pool saturated, running inline\" job_id=%s err=%q", jobID, err)
		task()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if coreErr != nil {
		o.setJobStatus(context.WithoutCancel(ctx), jobID, JobStatus{Status: JobStatusFailed, Error: coreErr.Error()})
		return nil, coreErr
	}
	o.setJobStatus(ctx, jobID, JobStatus{Status: JobStatusCompleted, Result: result})
	return result, nil
}

// awaitWinner is the loser path of the duplicate-suppression race: hand back
// the winner's cached result when it has already landed, otherwise the
// winner's job id so the caller can poll /jobs/:id while the work finishes.
func (o *Orchestrator) awaitWinner(ctx context.Context, sig string) (*SearchResult, error) {
	jobID, err := o.store.WaitForValue(ctx, trackerKey(sig), contendWait, contendPoll)
	if err != nil && !errors.Is(err, cache.ErrWaitTimeout) {
		return nil, err
	}

	// The winner may have finished and cleared the tracker already.
	if result := o.cachedResult(ctx, sig); result != nil {
		return result, nil
	}
	if jobID != "" {
		return &SearchResult{Type: ResultTypeJob, JobID: jobID}, nil
	}

	// No tracker ever appeared; give the result one more wait window before
	// reporting contention.
	if _, err := o.store.WaitForValue(ctx, resultKey(sig), contendWait, contendPoll); err == nil {
		if result := o.cachedResult(ctx, sig); result != nil {
			return result, nil
		}
	} else if !errors.Is(err, cache.ErrWaitTimeout) {
		return nil, err
	}
	return nil, ErrSearchBusy
}

// executeSearchCore is the charged part of a search: everything here runs at
// most once per unique signature thanks to the lock above it.
func (o *Orchestrator) executeSearchCore(ctx context.Context, jobID, sig string, req SearchRequest) (*SearchResult, error) {
	account, err := o.billing.GetOrCreateAccount(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load billing account: %w", err)
	}

	newDeep := req.DeepSearch && req.PageToken == ""
	cost := pageCost
	ledgerType := entity.LedgerTypeSearch
	if newDeep {
		cost = deepSearchCost
		ledgerType = entity.LedgerTypeDeepSearch
	}
	if account.Credits < cost {
		return nil, repository.ErrInsufficientCredits
	}

	plan := o.plan(account.Plan)
	remaining := account.Credits - cost
	gridSize, maxPages := boostedLimits(plan, remaining)

	var result *SearchResult
	switch {
	case strings.HasPrefix(req.PageToken, deepTokenPrefix):
		result, err = o.deepContinuation(ctx, req)
	case newDeep:
		result, err = o.deepSearch(ctx, jobID, req, plan, gridSize, maxPages, remaining)
	default:
		result, err = o.standardSearch(ctx, jobID, req, plan)
	}
	if err != nil {
		return nil, err
	}

	charge := repository.SearchCharge{
		UserID:     req.UserID,
		Amount:     cost,
		LedgerType: ledgerType,
		Metadata: map[string]any{
			"city":        req.City,
			"keyword":     req.Keyword,
			"deep_search": req.DeepSearch,
			"page_token":  req.PageToken,
			"job_id":      jobID,
		},
	}
	if req.PageToken == "" {
		charge.History = &entity.SearchHistory{
			UserID:     req.UserID,
			City:       req.City,
			Keyword:    req.Keyword,
			DeepSearch: req.DeepSearch,
			JobID:      jobID,
		}
	}
	if err := o.billing.ChargeSearch(ctx, charge); err != nil {
		return nil, fmt.Errorf("charge search: %w", err)
	}

	result.Type = ResultTypeJob
	result.JobID = jobID
	o.cacheResult(ctx, sig, result)
	return result, nil
}

// standardSearch serves one logical page via plain provider pagination. The
// provider may hand back short raw pages, so fetch until the logical page is
// full or the provider runs out.
func (o *Orchestrator) standardSearch(ctx context.Context, jobID string, req SearchRequest, plan entity.Plan) (*SearchResult, error) {
	query := searchQuery(req)
	var collected []entity.Place
	token := req.PageToken
	for {
		page, err := o.gateway.SearchText(ctx, query, places.SearchOptions{
			PageToken: token,
			PageSize:  plan.PageSize - len(collected),
		})
		if err != nil {
			return nil, err
		}
		o.persistAndPublish(ctx, jobID, req.UserID, page.Places)
		collected = append(collected, page.Places...)
		token = page.NextPageToken
		if token == "" || len(collected) >= plan.PageSize {
			break
		}
	}
	// Everything fetched is persisted above, but one logical page never
	// exceeds the plan's page size even when the provider over-serves a
	// short-page follow-up request.
	if len(collected) > plan.PageSize {
		collected = collected[:plan.PageSize]
	}

	total := o.bumpSessionTotal(ctx, req, len(collected))

	next := token
	switch {
	case token == "" && total >= googleResultCeiling:
		next = TokenGoogleLimit
	case token != "" && total >= plan.MaxResults:
		next = TokenPlanLimit
	}
	return &SearchResult{Places: collected, NextPageToken: next}, nil
}

// bumpSessionTotal tracks how many places a (user, city, keyword) session has
// consumed across continuations. Best effort: if the counter is unreachable,
// the page count alone decides the sentinels.
func (o *Orchestrator) bumpSessionTotal(ctx context.Context, req SearchRequest, pageLen int) int {
	key := "search:total:" + baseSignature(req.City, req.Keyword) + ":" + req.UserID.String()
	total, err := o.store.IncrBy(ctx, key, int64(pageLen), sessionTTL)
	if err != nil {
		log.Printf("level=warn msg=\"session counter unavailable\" key=%s err=%q", key, err)
		return pageLen
	}
	return int(total)
}

// deepSearch fans a query out over a city-wide grid, dedupes and persists
// everything, then serves the first page. Follow-up pages come from cache via
// deep continuation tokens instead of re-querying the provider.
func (o *Orchestrator) deepSearch(ctx context.Context, jobID string, req SearchRequest, plan entity.Plan, gridSize, maxPages, remainingCredits int) (*SearchResult, error) {
	vp := o.lookupViewport(ctx, req.City)
	if vp == nil {
		log.Printf("level=warn msg=\"no viewport for city, falling back to standard search\" city=%q", req.City)
		return o.standardSearch(ctx, jobID, req, plan)
	}

	scanned := o.gateway.ScanCity(ctx, searchQuery(req), *vp, places.ScanOptions{
		GridSize:        gridSize,
		MaxPagesPerGrid: maxPages,
	})
	unique := dedupeByPlaceID(scanned)

	// A deep result set may not be larger than the user can afford to page
	// through: the init charge covers the first page, every later page costs
	// one credit.
	maxPlaces := min(plan.MaxDeepPages, 1+remainingCredits) * deepPageSize
	if len(unique) > maxPlaces {
		unique = unique[:maxPlaces]
	}

	o.persistAndPublish(ctx, jobID, req.UserID, unique)

	ids := make([]string, len(unique))
	slims := make([]entity.Place, len(unique))
	for i, p := range unique {
		ids[i] = p.PlaceID
		slims[i] = p.Slim()
	}
	base := baseSignature(req.City, req.Keyword)
	if err := o.store.SetJSON(ctx, deepIDsKey(base), ids, deepListTTL); err != nil {
		log.Printf("level=warn msg=\"store deep id list\" err=%q", err)
	}
	if err := o.store.SetJSON(ctx, deepSlimKey(base), slims, deepListTTL); err != nil {
		log.Printf("level=warn msg=\"store deep slim list\" err=%q", err)
	}

	end := min(deepPageSize, len(unique))
	result := &SearchResult{Places: unique[:end]}
	if len(unique) > end {
		result.NextPageToken = deepToken(end)
	}
	return result, nil
}

// deepContinuation serves a later page of a finished deep scan from cache.
// Deep pages are always deepPageSize wide regardless of plan, matching the
// sizing the deep credit cap is computed from. Idempotent: re-requesting the
// same token returns the same page.
func (o *Orchestrator) deepContinuation(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	offset, err := strconv.Atoi(strings.TrimPrefix(req.PageToken, deepTokenPrefix))
	if err != nil || offset < 0 {
		return nil, fmt.Errorf("malformed deep page token %q", req.PageToken)
	}
	base := baseSignature(req.City, req.Keyword)

	var slims []entity.Place
	ok, err := o.store.GetJSON(ctx, deepSlimKey(base), &slims)
	if err != nil {
		log.Printf("level=warn msg=\"read deep slim list\" err=%q", err)
	}
	if ok {
		return paginateDeep(slims, offset), nil
	}

	// Slim list evicted; fall back to the id list plus the database, which
	// survives cache churn.
	var ids []string
	ok, err = o.store.GetJSON(ctx, deepIDsKey(base), &ids)
	if err != nil {
		log.Printf("level=warn msg=\"read deep id list\" err=%q", err)
	}
	if !ok {
		return nil, ErrCacheExpired
	}
	if offset >= len(ids) {
		return &SearchResult{Places: []entity.Place{}}, nil
	}
	end := min(offset+deepPageSize, len(ids))
	page, err := o.placesRepo.FindByIDs(ctx, ids[offset:end])
	if err != nil {
		return nil, fmt.Errorf("load deep page from store: %w", err)
	}
	result := &SearchResult{Places: page}
	if end < len(ids) {
		result.NextPageToken = deepToken(end)
	}
	return result, nil
}

func paginateDeep(all []entity.Place, offset int) *SearchResult {
	if offset >= len(all) {
		return &SearchResult{Places: []entity.Place{}}
	}
	end := min(offset+deepPageSize, len(all))
	result := &SearchResult{Places: all[offset:end]}
	if end < len(all) {
		result.NextPageToken = deepToken(end)
	}
	return result
}

// lookupViewport resolves the target city to a bounding viewport with one
// minimal provider call. Nil when the city cannot be resolved.
func (o *Orchestrator) lookupViewport(ctx context.Context, city string) *entity.Viewport {
	page, err := o.gateway.SearchText(ctx, city, places.SearchOptions{PageSize: 1})
	if err != nil {
		log.Printf("level=warn msg=\"viewport lookup failed\" city=%q err=%q", city, err)
		return nil
	}
	if len(page.Places) == 0 || page.Places[0].Viewport == nil {
		return nil
	}
	return page.Places[0].Viewport
}

// persistAndPublish writes one batch of places through the durable store,
// links them to the searching user, queues enrichment for the new ones and
// announces progress on the job channel. All failures here are logged, not
// fatal: the search result still flows back to the caller.
func (o *Orchestrator) persistAndPublish(ctx context.Context, jobID string, userID uuid.UUID, batch []entity.Place) {
	if len(batch) == 0 {
		return
	}
	if err := o.placesRepo.UpsertBatch(ctx, batch); err != nil {
		log.Printf("level=error msg=\"persist places\" job_id=%s count=%d err=%q", jobID, len(batch), err)
	}

	ids := make([]string, len(batch))
	byID := make(map[string]entity.Place, len(batch))
	for i, p := range batch {
		ids[i] = p.PlaceID
		byID[p.PlaceID] = p
	}
	if err := o.placesRepo.UpsertLeads(ctx, userID, ids); err != nil {
		log.Printf("level=error msg=\"link leads\" job_id=%s user_id=%s err=%q", jobID, userID, err)
	}

	if o.enricher != nil {
		pending, err := o.placesRepo.PendingEnrichment(ctx, ids)
		if err != nil {
			log.Printf("level=error msg=\"list pending enrichment\" job_id=%s err=%q", jobID, err)
		} else if len(pending) > 0 {
			jobs := make([]EnrichmentJob, 0, len(pending))
			for _, id := range pending {
				p := byID[id]
				job := EnrichmentJob{PlaceID: id, Name: p.Name, JobID: jobID}
				if p.Website != nil {
					job.Website = *p.Website
				}
				if p.Address != nil {
					job.Address = *p.Address
				}
				jobs = append(jobs, job)
			}
			o.enricher.Enqueue(ctx, jobs)
		}
	}

	if err := o.store.Publish(ctx, jobChannel(jobID), batch); err != nil {
		log.Printf("level=warn msg=\"publish job progress\" job_id=%s err=%q", jobID, err)
	}
}

// cacheResult writes the finished page to both tiers: hot for duplicate
// suppression and repeat requests, durable so the result survives Redis
// eviction for the rest of the day.
func (o *Orchestrator) cacheResult(ctx context.Context, sig string, result *SearchResult) {
	if err := o.store.SetJSON(ctx, resultKey(sig), result, hotResultTTL); err != nil {
		log.Printf("level=warn msg=\"write hot result cache\" signature=%s err=%q", sig, err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("level=error msg=\"encode result for durable cache\" signature=%s err=%q", sig, err)
		return
	}
	if err := o.durable.Put(ctx, sig, payload, durableTTL); err != nil {
		log.Printf("level=warn msg=\"write durable result cache\" signature=%s err=%q", sig, err)
	}
}

// cachedResult checks the hot tier first, then the durable tier, rehydrating
// the hot tier on a durable hit. Nil on miss or any cache fault.
func (o *Orchestrator) cachedResult(ctx context.Context, sig string) *SearchResult {
	var result SearchResult
	ok, err := o.store.GetJSON(ctx, resultKey(sig), &result)
	if err != nil {
		log.Printf("level=warn msg=\"read hot result cache\" signature=%s err=%q", sig, err)
	}
	if ok {
		result.Type = ResultTypeCached
		result.Cached = true
		return &result
	}

	payload, err := o.durable.Get(ctx, sig)
	if err != nil {
		log.Printf("level=warn msg=\"read durable result cache\" signature=%s err=%q", sig, err)
		return nil
	}
	if payload == nil {
		return nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Printf("level=warn msg=\"decode durable result\" signature=%s err=%q", sig, err)
		return nil
	}
	if err := o.store.SetJSON(ctx, resultKey(sig), &result, hotResultTTL); err != nil {
		log.Printf("level=warn msg=\"rehydrate hot result cache\" signature=%s err=%q", sig, err)
	}
	result.Type = ResultTypeCached
	result.Cached = true
	return &result
}

// EnrichedPlaces returns stored places together with the contact data the
// enrichment worker has written back, for response composition.
func (o *Orchestrator) EnrichedPlaces(ctx context.Context, placeIDs []string) ([]entity.EnrichedPlace, error) {
	return o.placesRepo.FindEnrichedByIDs(ctx, placeIDs)
}

// GetJobStatus returns the last recorded state of a search job, or nil when
// the job is unknown or its record expired.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var status JobStatus
	ok, err := o.store.GetJSON(ctx, jobStatusKey(jobID), &status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (o *Orchestrator) setJobStatus(ctx context.Context, jobID string, status JobStatus) {
	if err := o.store.SetJSON(ctx, jobStatusKey(jobID), status, jobStatusTTL); err != nil {
		log.Printf("level=warn msg=\"write job status\" job_id=%s err=%q", jobID, err)
	}
}

func (o *Orchestrator) plan(name string) entity.Plan {
	if plan, ok := o.plans[name]; ok {
		return plan
	}
	return o.plans["free"]
}

// boostedLimits widens the deep-scan grid for users with spare balance.
// Remaining balance of 50 or more earns one extra step, 200 or more a
// second, both hard-capped.
func boostedLimits(plan entity.Plan, remainingCredits int) (gridSize, maxPages int) {
	gridSize = plan.GridSize
	maxPages = plan.MaxPagesPerGrid
	if remainingCredits >= boostFirstThreshold {
		gridSize++
		maxPages++
	}
	if remainingCredits >= boostSecondThreshold {
		gridSize++
		maxPages++
	}
	if gridSize > maxGridSizeBoosted {
		gridSize = maxGridSizeBoosted
	}
	if maxPages > maxPagesBoosted {
		maxPages = maxPagesBoosted
	}
	return gridSize, maxPages
}

func dedupeByPlaceID(in []entity.Place) []entity.Place {
	seen := make(map[string]struct{}, len(in))
	out := make([]entity.Place, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.PlaceID]; ok {
			continue
		}
		seen[p.PlaceID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func searchQuery(req SearchRequest) string {
	return req.Keyword + " in " + req.City
}

// signature identifies one unique search invocation including its page
// position. Continuations hash to distinct signatures, so each page is
// cached and deduplicated independently.
func signature(req SearchRequest) string {
	deep := "0"
	if req.DeepSearch {
		deep = "1"
	}
	return hashKey(normalize(req.City), normalize(req.Keyword), deep, req.PageToken)
}

// baseSignature identifies a search session regardless of page position.
func baseSignature(city, keyword string) string {
	return hashKey(normalize(city), normalize(keyword))
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func deepToken(offset int) string {
	return deepTokenPrefix + strconv.Itoa(offset)
}

func lockKey(sig string) string      { return "lock:search:" + sig }
func trackerKey(sig string) string   { return "job:search:" + sig }
func resultKey(sig string) string    { return "search:result:" + sig }
func jobStatusKey(id string) string  { return "job:status:" + id }
func jobChannel(id string) string    { return "job:updates:" + id }
func deepIDsKey(base string) string  { return "deep:ids:" + base }
func deepSlimKey(base string) string { return "deep:slim:" + base }
