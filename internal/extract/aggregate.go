package extract

import (
	"context"
	"log/slog"

	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/source"
)

// FetchFunc retrieves the full content of one message by ID.
type FetchFunc func(ctx context.Context, id string) (*model.RawMessage, error)

// Aggregator runs extraction over a batch of messages and ranks the
// per-message results into one answer. It holds no state between calls.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an Aggregator that logs through logger. A nil
// logger uses slog.Default().
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// ExtractMessage decodes msg and runs the code, link and sender extractors
// on it. ok is false when the message yields neither a code nor a link
// tied to a usable classification.
func (a *Aggregator) ExtractMessage(
	msg model.RawMessage, target string,
) (model.MessageResult, bool) {
	body := DecodeBody(msg, a.logger)
	if body.Empty() {
		a.logger.Debug("no decodable content", "message_id", msg.ID)
		return model.MessageResult{}, false
	}

	result := model.MessageResult{
		MessageID: msg.ID,
		Sender:    ExtractSender(msg.Payload.Headers),
		Timestamp: msg.InternalDate,
	}

	if code, ok := ExtractCode(body); ok {
		result.Code = code.Value
		a.logger.Debug("found code",
			"message_id", msg.ID, "tier", code.Tier,
			"strategy", strategyName(code.Tier))
	}

	if link, ok := ExtractLink(body, target); ok && link.Type != model.LinkTypeOther {
		result.Link = link.URL
		result.LinkType = link.Type
		a.logger.Debug("found link",
			"message_id", msg.ID, "link_type", link.Type,
			"base_domain", link.BaseDomain)
	}

	if result.Code == "" && result.Link == "" {
		return model.MessageResult{}, false
	}
	return result, true
}

// Aggregate extracts from every message in msgs and ranks the results.
func (a *Aggregator) Aggregate(
	msgs []model.RawMessage, target string,
) model.AggregateResult {
	results := make([]model.MessageResult, 0, len(msgs))
	for _, msg := range msgs {
		if r, ok := a.ExtractMessage(msg, target); ok {
			results = append(results, r)
		}
	}
	return Rank(results)
}

// AggregateFetched fetches each message in ids with fetch and extracts from
// it. A message that fails to fetch is skipped. An authorization failure
// stops the batch at once: the ranking of the messages processed so far is
// returned together with the error so the caller can drop its credential.
func (a *Aggregator) AggregateFetched(
	ctx context.Context,
	ids []string,
	fetch FetchFunc,
	target string,
) (model.AggregateResult, error) {
	results := make([]model.MessageResult, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return Rank(results), err
		}

		msg, err := fetch(ctx, id)
		if err != nil {
			if source.IsAuthError(err) {
				a.logger.Error("authorization failed, aborting batch",
					"message_id", id, "err", err)
				return Rank(results), err
			}
			a.logger.Warn("skipping message", "message_id", id, "err", err)
			continue
		}
		if msg == nil {
			continue
		}

		if r, ok := a.ExtractMessage(*msg, target); ok {
			results = append(results, r)
		}
	}

	return Rank(results), nil
}

// Rank picks one answer from per-message results:
//  1. the most recent message with a code supplies code and sender;
//  2. if it has no link, the best domain-matched link from any message is
//     attached (exact before contains, then most recent);
//  3. without any code, the best domain-matched link wins, ranked the
//     same way;
//  4. otherwise the result is empty.
//
// Timestamp ties keep the earlier result.
func Rank(results []model.MessageResult) model.AggregateResult {
	var codeWinner *model.MessageResult
	for i := range results {
		r := &results[i]
		if r.Code == "" {
			continue
		}
		if codeWinner == nil || r.Timestamp > codeWinner.Timestamp {
			codeWinner = r
		}
	}

	if codeWinner != nil {
		out := model.AggregateResult{
			Code:   codeWinner.Code,
			Link:   codeWinner.Link,
			Sender: codeWinner.Sender,
		}
		if out.Link == "" {
			if best := bestDomainLink(results); best != nil {
				out.Link = best.Link
			}
		}
		return out
	}

	if linkWinner := bestDomainLink(results); linkWinner != nil {
		return model.AggregateResult{
			Link:   linkWinner.Link,
			Sender: linkWinner.Sender,
		}
	}

	return model.AggregateResult{}
}

// bestDomainLink returns the result holding the best domain-matched link,
// or nil if none has one.
func bestDomainLink(results []model.MessageResult) *model.MessageResult {
	var best *model.MessageResult
	for i := range results {
		r := &results[i]
		if !r.LinkType.DomainMatch() {
			continue
		}
		if best == nil || linkOutranks(*r, *best) {
			best = r
		}
	}
	return best
}

func linkOutranks(a, b model.MessageResult) bool {
	aExact := a.LinkType == model.LinkTypeExactDomain
	bExact := b.LinkType == model.LinkTypeExactDomain
	if aExact != bExact {
		return aExact
	}
	return a.Timestamp > b.Timestamp
}
