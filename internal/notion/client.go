// Package notion はNotion APIを使った下書きの同期機能を提供する。
//
// 下書きは "Newsletter Drafts" データベース内のページとして保存し、
// 本文は空行区切りの段落ブロックとして書き込む。
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf16"

	"github.com/jomei/notionapi"
)

const (
	// DatabaseTitle は下書きを保存するデータベースのタイトル。
	DatabaseTitle = "Newsletter Drafts"

	// maxBlocksPerRequest は1リクエストで追加できるブロック数の上限。
	maxBlocksPerRequest = 100

	// maxTextLength はrich_text 1要素あたりの文字数上限（UTF-16単位）。
	maxTextLength = 2000

	titlePropertyName = "title"
)

// ErrNoParentPage は共有されたページがなく、データベースを作成できない場合のエラー。
var ErrNoParentPage = errors.New("データベースを作成できる共有ページが見つかりません")

// Client はNotion APIのクライアント。
// APIキーはユーザーごとに異なるため、呼び出しごとに notionapi.Client を組み立てる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) api(apiKey string) *notionapi.Client {
	return notionapi.NewClient(notionapi.Token(apiKey), notionapi.WithHTTPClient(c.httpClient))
}

// PushDraft は下書きをNotionページに書き込み、ページIDを返す。
// pageIDが空の場合は新規ページを作成し、指定された場合はタイトル更新後に本文を全て置き換える。
func (c *Client) PushDraft(ctx context.Context, apiKey, pageID, title, body string) (string, error) {
	api := c.api(apiKey)
	blocks := paragraphBlocks(body)

	if pageID == "" {
		id, err := c.createPage(ctx, api, title, blocks)
		if err != nil {
			return "", err
		}
		c.logger.Info("Notionページを作成しました", slog.String("page_id", id))
		return id, nil
	}

	_, err := api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: titleProperties(title),
	})
	if err != nil {
		return "", c.fail("Notionページのタイトル更新に失敗しました", err)
	}
	if err := c.replaceChildren(ctx, api, pageID, blocks); err != nil {
		return "", err
	}
	c.logger.Info("Notionページを更新しました", slog.String("page_id", pageID))
	return pageID, nil
}

// PullDraft はNotionページのタイトルと本文を取得する。
// 本文は段落・見出し・箇条書きブロックのテキストを空行区切りで連結したもの。
func (c *Client) PullDraft(ctx context.Context, apiKey, pageID string) (string, string, error) {
	api := c.api(apiKey)

	page, err := api.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return "", "", c.fail("Notionページの取得に失敗しました", err)
	}

	title := ""
	for _, prop := range page.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			title = plainText(tp.Title)
			break
		}
	}

	blocks, err := c.listChildren(ctx, api, pageID)
	if err != nil {
		return "", "", err
	}

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		rt, ok := blockRichText(b)
		if !ok {
			continue
		}
		var sb strings.Builder
		for _, t := range rt {
			if t.Type == notionapi.ObjectTypeText && t.Text != nil {
				sb.WriteString(t.Text.Content)
			}
		}
		parts = append(parts, sb.String())
	}
	return title, strings.Join(parts, "\n\n"), nil
}

// blockRichText はテキストを持つ既知のブロック種別の本文を返す。
func blockRichText(b notionapi.Block) ([]notionapi.RichText, bool) {
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		return v.Paragraph.RichText, true
	case *notionapi.Heading1Block:
		return v.Heading1.RichText, true
	case *notionapi.Heading2Block:
		return v.Heading2.RichText, true
	case *notionapi.Heading3Block:
		return v.Heading3.RichText, true
	case *notionapi.BulletedListItemBlock:
		return v.BulletedListItem.RichText, true
	case *notionapi.NumberedListItemBlock:
		return v.NumberedListItem.RichText, true
	}
	return nil, false
}

func (c *Client) createPage(ctx context.Context, api *notionapi.Client, title string, blocks []notionapi.Block) (string, error) {
	databaseID, err := c.findOrCreateDatabase(ctx, api)
	if err != nil {
		return "", err
	}

	first, rest := splitBlocks(blocks)
	created, err := api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: titleProperties(title),
		Children:   first,
	})
	if err != nil {
		return "", c.fail("Notionページの作成に失敗しました", err)
	}

	pageID := created.ID.String()
	if err := c.appendChildren(ctx, api, pageID, rest); err != nil {
		return "", err
	}
	return pageID, nil
}

// replaceChildren は既存ブロックを全て削除してから新しいブロックを追加する。
// 途中で失敗した場合の巻き戻しは行わない。
func (c *Client) replaceChildren(ctx context.Context, api *notionapi.Client, pageID string, blocks []notionapi.Block) error {
	existing, err := c.listChildren(ctx, api, pageID)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if _, err := api.Block.Delete(ctx, b.GetID()); err != nil {
			return c.fail("Notionブロックの削除に失敗しました", err)
		}
	}
	return c.appendChildren(ctx, api, pageID, blocks)
}

func (c *Client) appendChildren(ctx context.Context, api *notionapi.Client, pageID string, blocks []notionapi.Block) error {
	for len(blocks) > 0 {
		var chunk []notionapi.Block
		chunk, blocks = splitBlocks(blocks)
		_, err := api.Block.AppendChildren(ctx, notionapi.BlockID(pageID), &notionapi.AppendBlockChildrenRequest{
			Children: chunk,
		})
		if err != nil {
			return c.fail("Notionブロックの追加に失敗しました", err)
		}
	}
	return nil
}

func (c *Client) listChildren(ctx context.Context, api *notionapi.Client, pageID string) ([]notionapi.Block, error) {
	var (
		all    []notionapi.Block
		cursor notionapi.Cursor
	)
	for {
		resp, err := api.Block.GetChildren(ctx, notionapi.BlockID(pageID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    maxBlocksPerRequest,
		})
		if err != nil {
			return nil, c.fail("Notionブロックの取得に失敗しました", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// findOrCreateDatabase は DatabaseTitle のデータベースを探し、なければ
// 検索で最初に見つかったページの下に作成する。
func (c *Client) findOrCreateDatabase(ctx context.Context, api *notionapi.Client) (string, error) {
	found, err := api.Search.Do(ctx, &notionapi.SearchRequest{Query: DatabaseTitle})
	if err != nil {
		return "", c.fail("Notionデータベースの検索に失敗しました", err)
	}
	for _, r := range found.Results {
		if db, ok := r.(*notionapi.Database); ok && plainText(db.Title) == DatabaseTitle {
			return db.ID.String(), nil
		}
	}

	all, err := api.Search.Do(ctx, &notionapi.SearchRequest{PageSize: 1})
	if err != nil {
		return "", c.fail("Notionワークスペースの検索に失敗しました", err)
	}
	parentID := ""
	for _, r := range all.Results {
		switch v := r.(type) {
		case *notionapi.Page:
			parentID = v.ID.String()
		case *notionapi.Database:
			parentID = v.ID.String()
		}
		if parentID != "" {
			break
		}
	}
	if parentID == "" {
		return "", ErrNoParentPage
	}

	db, err := api.Database.Create(ctx, &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentID),
		},
		Title: textRuns(DatabaseTitle),
		Properties: notionapi.PropertyConfigs{
			titlePropertyName: &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
		},
	})
	if err != nil {
		return "", c.fail("Notionデータベースの作成に失敗しました", err)
	}
	c.logger.Info("Notionデータベースを作成しました", slog.String("database_id", db.ID.String()))
	return db.ID.String(), nil
}

// fail はAPIエラーをログに残し、文脈を付けて返す。
func (c *Client) fail(msg string, err error) error {
	attrs := []any{slog.String("error", err.Error())}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.Int("http_status", apiErr.Status),
			slog.String("code", string(apiErr.Code)),
		)
	}
	c.logger.Error(msg, attrs...)
	return fmt.Errorf("%s: %w", msg, err)
}

// paragraphBlocks は本文を空行で区切り、空でない段落を段落ブロックにする。
func paragraphBlocks(body string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeParagraph,
			},
			Paragraph: notionapi.Paragraph{RichText: textRuns(p)},
		})
	}
	return blocks
}

// textRuns は文字列を上限以下の長さのrich_text要素に分割する。
func textRuns(s string) []notionapi.RichText {
	var (
		runs  []notionapi.RichText
		start int
		units int
	)
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > maxTextLength {
			runs = append(runs, textRun(s[start:i]))
			start, units = i, 0
		}
		units += n
	}
	if start < len(s) || len(runs) == 0 {
		runs = append(runs, textRun(s[start:]))
	}
	return runs
}

func textRun(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

func plainText(rt []notionapi.RichText) string {
	var sb strings.Builder
	for _, t := range rt {
		switch {
		case t.PlainText != "":
			sb.WriteString(t.PlainText)
		case t.Text != nil:
			sb.WriteString(t.Text.Content)
		}
	}
	return sb.String()
}

func splitBlocks(blocks []notionapi.Block) ([]notionapi.Block, []notionapi.Block) {
	if len(blocks) <= maxBlocksPerRequest {
		return blocks, nil
	}
	return blocks[:maxBlocksPerRequest], blocks[maxBlocksPerRequest:]
}

func titleProperties(title string) notionapi.Properties {
	return notionapi.Properties{
		titlePropertyName: &notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: textRuns(title),
		},
	}
}
