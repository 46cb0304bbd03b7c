package message

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	model "github.com/zhouzirui/z-board/backend/internal/model/message"
)

type createRequest struct {
	Content  string  `json:"content"`
	ParentID *uint64 `json:"parentId,omitempty"`
}

func (r createRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.By(notBlank)),
	)
}

type updateRequest struct {
	Content string `json:"content"`
}

func (r updateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.By(notBlank)),
	)
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// parsePageRequest 解析 page/limit/sortBy 查询参数，缺省时使用默认分页
func parsePageRequest(q url.Values, defaultLimit, maxLimit uint32) (model.PageRequest, error) {
	req := model.PageRequest{
		Page:   1,
		Limit:  defaultLimit,
		SortBy: strings.TrimSpace(q.Get("sortBy")),
	}

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return model.PageRequest{}, fmt.Errorf("invalid page %q", raw)
		}
		req.Page = uint32(v)
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return model.PageRequest{}, fmt.Errorf("invalid limit %q", raw)
		}
		req.Limit = uint32(v)
	}

	if req.Limit > maxLimit {
		return model.PageRequest{}, fmt.Errorf("limit must not exceed %d", maxLimit)
	}
	return req, nil
}
