/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mutation

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/tomoncle/repohub/database"
	"github.com/tomoncle/repohub/models"
	"github.com/tomoncle/repohub/repository"
	"github.com/tomoncle/repohub/schema"
	"github.com/tomoncle/repohub/storage"
	"github.com/tomoncle/repohub/types"
	"github.com/tomoncle/repohub/utils"
)

// Item keys of create and edit requests.
const (
	KeyNonce = "nonce"
	KeyID    = "id"
	KeyData  = "data"
)

// Payload is an uploaded binary attached to one create item.
type Payload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// BlobHolder is implemented by models that own a stored payload.
type BlobHolder interface {
	BlobOwnerID() int64
	AttachBlob(key, mimeType string, size int64)
}

// Options configures a Processor.
type Options struct {
	// MaxCreate caps the number of items of one create request; 0 means
	// no cap.
	MaxCreate  int
	Blobs      storage.BlobStore
	BlobPrefix string
	Registry   *schema.Registry
	Logger     *logrus.Logger
}

// Processor validates and applies create, edit and delete batches for one
// entity kind. Each item is persisted in its own transaction.
type Processor[T any] struct {
	entity *schema.Entity
	repo   repository.Repository[T]
	opts   Options
	logger *logrus.Logger
}

func New[T any](entity *schema.Entity, repo repository.Repository[T], opts Options) *Processor[T] {
	if opts.Registry == nil {
		opts.Registry = schema.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger(utils.LoggerMutation)
	}
	return &Processor[T]{entity: entity, repo: repo, opts: opts, logger: logger}
}

// itemError aborts the transaction of one item with a reason code.
type itemError struct {
	code types.ErrorCode
	err  error
}

func (e *itemError) Error() string {
	if e.err != nil {
		return e.code.Name() + ": " + e.err.Error()
	}
	return e.code.Name()
}

func (e *itemError) Unwrap() error { return e.err }

type createItem struct {
	key  string
	data types.JsonObject
}

type editItem struct {
	key  string
	id   int64
	data types.JsonObject
}

// Create inserts every {nonce, data} item of raw. Request shape errors are
// returned as *types.RequestError before anything is persisted.
func (p *Processor[T]) Create(ctx context.Context, raw interface{}, payloads map[string]*Payload) (*CreateResult, error) {
	list, ok := types.AsList(raw)
	if !ok {
		return nil, types.NewRequestError(types.DataFormatInvalid)
	}
	if len(list) == 0 {
		return nil, types.NewRequestError(types.DataInsufficient)
	}
	if p.opts.MaxCreate > 0 && len(list) > p.opts.MaxCreate {
		return nil, types.NewRequestError(types.RequestOverObjectLimit)
	}
	items := make([]createItem, 0, len(list))
	for _, rawItem := range list {
		obj, ok := types.AsObject(rawItem)
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		nonce, ok := obj[KeyNonce]
		if !ok || nonce == nil {
			return nil, types.NewRequestError(types.DataInsufficient)
		}
		data, ok := types.AsObject(obj[KeyData])
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		items = append(items, createItem{key: types.KeyString(nonce), data: data})
	}

	out := newOutcomes()
	for _, item := range items {
		id, code := p.createOne(ctx, item, payloads[item.key])
		if code != nil {
			out.failed(item.key, *code)
			continue
		}
		out.succeeded(item.key, id)
	}
	return out.createResult(), nil
}

func (p *Processor[T]) createOne(ctx context.Context, item createItem, payload *Payload) (int64, *types.ErrorCode) {
	if code := p.checkFields(item.data); code != nil {
		return 0, code
	}
	entity := new(T)
	if err := decodeInto(item.data, entity); err != nil {
		return 0, codePtr(types.DataValidationFailed)
	}
	if err := validate(entity); err != nil {
		return 0, codePtr(types.DataValidationFailed)
	}

	blobKey, code := p.storePayload(ctx, entity, payload)
	if code != nil {
		return 0, code
	}

	err := p.repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := p.checkReferences(ctx, tx, item.data); err != nil {
			return err
		}
		return p.repo.CreateWithTx(ctx, tx, entity)
	})
	if err != nil {
		p.discardPayload(blobKey)
		return 0, p.failure(err, "create", item.key)
	}
	return idOf(entity), nil
}

// Edit applies the data of every {id, data} item of raw to the stored row.
func (p *Processor[T]) Edit(ctx context.Context, raw interface{}) (*EditResult, error) {
	list, ok := types.AsList(raw)
	if !ok {
		return nil, types.NewRequestError(types.DataFormatInvalid)
	}
	if len(list) == 0 {
		return nil, types.NewRequestError(types.DataInsufficient)
	}
	items := make([]editItem, 0, len(list))
	for _, rawItem := range list {
		obj, ok := types.AsObject(rawItem)
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		rawID, ok := obj[KeyID]
		if !ok || rawID == nil {
			return nil, types.NewRequestError(types.DataInsufficient)
		}
		id, ok := types.AsInt64(rawID)
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		data, ok := types.AsObject(obj[KeyData])
		if !ok {
			return nil, types.NewRequestError(types.DataFormatInvalid)
		}
		items = append(items, editItem{key: strconv.FormatInt(id, 10), id: id, data: data})
	}

	out := newOutcomes()
	for _, item := range items {
		if code := p.editOne(ctx, item); code != nil {
			out.failed(item.key, *code)
			continue
		}
		out.succeeded(item.key, item.id)
	}
	return out.editResult(), nil
}

func (p *Processor[T]) editOne(ctx context.Context, item editItem) *types.ErrorCode {
	if code := p.checkFields(item.data); code != nil {
		return code
	}
	columns := p.columns(item.data)

	err := p.repo.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		entity, err := p.repo.GetOneWithTx(ctx, tx, item.id)
		if errors.Is(err, sql.ErrNoRows) {
			return &itemError{code: types.ObjectNotFound}
		}
		if err != nil {
			return err
		}
		if p.deleted(entity) {
			return &itemError{code: types.ObjectNotFound}
		}
		if err := decodeInto(item.data, entity); err != nil {
			return &itemError{code: types.DataValidationFailed, err: err}
		}
		if err := validate(entity); err != nil {
			return &itemError{code: types.DataValidationFailed, err: err}
		}
		if err := p.checkReferences(ctx, tx, item.data); err != nil {
			return err
		}
		return p.repo.UpdateColumnsWithTx(ctx, tx, entity, columns...)
	})
	if err != nil {
		return p.failure(err, "edit", item.key)
	}
	return nil
}

// Delete soft deletes the integer ids of raw in one transaction.
func (p *Processor[T]) Delete(ctx context.Context, raw interface{}) (*DeleteResult, error) {
	if !p.entity.SoftDeletable() {
		return nil, fmt.Errorf("mutation: %s rows can not be deleted", p.entity.Kind)
	}
	list, ok := types.AsList(raw)
	if !ok {
		return nil, types.NewRequestError(types.DataFormatInvalid)
	}
	if len(list) == 0 {
		return nil, types.NewRequestError(types.DataInsufficient)
	}

	result := &DeleteResult{Fail: map[string]types.ErrorCode{}, Success: map[string][]int64{KeyID: {}}}
	seen := map[int64]struct{}{}
	var ids []int64
	for _, v := range list {
		id, ok := types.StrictInt64(v)
		if !ok {
			result.Fail[types.KeyString(v)] = types.DataFormatInvalid
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return result, nil
	}

	affected, err := p.repo.SoftDelete(ctx, p.entity, ids)
	if err != nil {
		p.logFailure(err, "delete", fmt.Sprint(ids))
		for _, id := range ids {
			result.Fail[strconv.FormatInt(id, 10)] = types.ObjectNotModified
		}
		return result, nil
	}
	done := make(map[int64]struct{}, len(affected))
	for _, id := range affected {
		done[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := done[id]; !ok {
			result.Fail[strconv.FormatInt(id, 10)] = types.ObjectNotModified
		}
	}
	if affected != nil {
		result.Success[KeyID] = affected
	}
	return result, nil
}

// checkFields validates the written field names in sorted order so the
// reported reason is stable. Protected fields are reported as unknown.
func (p *Processor[T]) checkFields(data types.JsonObject) *types.ErrorCode {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch {
		case !p.entity.Exists(name), p.entity.IsProtected(name):
			return codePtr(types.FieldIdentifierInvalid)
		case p.entity.IsReadOnly(name):
			return codePtr(types.FieldReadOnly)
		}
	}
	return nil
}

func (p *Processor[T]) columns(data types.JsonObject) []string {
	columns := make([]string, 0, len(data)+1)
	for name := range data {
		columns = append(columns, p.entity.Column(name))
	}
	sort.Strings(columns)
	if p.entity.Exists(schema.FieldDateUpdated) {
		columns = append(columns, p.entity.Column(schema.FieldDateUpdated))
	}
	return columns
}

// checkReferences verifies that every written reference points to a live
// row of the referenced kind.
func (p *Processor[T]) checkReferences(ctx context.Context, tx bun.IDB, data types.JsonObject) error {
	for name, value := range data {
		field, ok := p.entity.Field(name)
		if !ok || field.Type != schema.TypeReference || value == nil {
			continue
		}
		id, ok := types.AsInt64(value)
		if !ok {
			return &itemError{code: types.DataValidationFailed}
		}
		target, err := p.opts.Registry.Entity(field.Ref)
		if err != nil {
			return err
		}
		q := tx.NewSelect().Table(target.Table).Where("id = ?", id)
		if target.SoftDeletable() {
			q = q.Where("? > 0", bun.Ident(target.Column(target.SoftField)))
		}
		exists, err := q.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return &itemError{code: types.DataValidationFailed, err: fmt.Errorf("%s %d does not exist", field.Ref, id)}
		}
	}
	return nil
}

func (p *Processor[T]) deleted(entity *T) bool {
	if !p.entity.SoftDeletable() {
		return false
	}
	obj, err := toObject(entity)
	if err != nil {
		return false
	}
	status, ok := types.AsInt64(obj[p.entity.SoftField])
	return ok && status == 0
}

func (p *Processor[T]) storePayload(ctx context.Context, entity *T, payload *Payload) (string, *types.ErrorCode) {
	holder, ok := any(entity).(BlobHolder)
	if payload == nil || !ok || p.opts.Blobs == nil {
		return "", nil
	}
	key := storage.NewKey(p.opts.BlobPrefix, holder.BlobOwnerID(), time.Now().UTC())
	counter := &countingReader{r: payload.Body}
	if err := p.opts.Blobs.Put(ctx, key, counter, payload.Size, payload.ContentType); err != nil {
		utils.NewLogger(utils.LoggerStorage).WithError(err).WithField("key", key).Error("failed to store payload")
		return "", codePtr(types.ObjectNotModified)
	}
	size := payload.Size
	if size < 0 {
		size = counter.n
	}
	holder.AttachBlob(key, payload.ContentType, size)
	return key, nil
}

func (p *Processor[T]) discardPayload(key string) {
	if key == "" {
		return
	}
	if err := p.opts.Blobs.Delete(context.Background(), key); err != nil {
		utils.NewLogger(utils.LoggerStorage).WithError(err).WithField("key", key).Warn("failed to remove orphaned payload")
	}
}

// failure maps a transaction error to the reported reason. Unexpected
// errors are logged and reported as not modified.
func (p *Processor[T]) failure(err error, op, key string) *types.ErrorCode {
	var ie *itemError
	if errors.As(err, &ie) {
		return codePtr(ie.code)
	}
	p.logFailure(err, op, key)
	return codePtr(types.ObjectNotModified)
}

func (p *Processor[T]) logFailure(err error, op, key string) {
	entry := p.logger.WithError(err).WithFields(logrus.Fields{"entity": p.entity.Kind, "op": op, "key": key})
	if is, kind := database.IsSqlError(err); is {
		entry = entry.WithField("sql_error", kind.String())
	}
	entry.Warn("mutation not applied")
}

func decodeInto(data types.JsonObject, dst interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func toObject(v interface{}) (types.JsonObject, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	var obj types.JsonObject
	if err := d.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func validate(entity interface{}) error {
	if v, ok := entity.(models.Entity); ok {
		return v.Validate()
	}
	return nil
}

func idOf(entity interface{}) int64 {
	if v, ok := entity.(models.Entity); ok {
		return v.GetID()
	}
	return 0
}

func codePtr(code types.ErrorCode) *types.ErrorCode { return &code }

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
