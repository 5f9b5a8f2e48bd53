package valkey

import (
	"context"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestSearchList_MatchAllUsesScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "app:Message:*", "COUNT", "500")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0"),
			mock.RedisArray(
				mock.RedisString("app:Message:b"),
				mock.RedisString("app:Message:a"),
			),
		)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "app:Message:a")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"text":   mock.RedisString("hello"),
			"vector": mock.RedisString("xxxx"),
		})))

	s := NewStoreForTest(c)
	res, err := s.SearchList(context.Background(), "app:Message", "*", 0, 1, []string{"text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}
	if len(res.Entries) != 1 || res.Entries[0].Key != "app:Message:a" {
		t.Fatalf("unexpected entries: %+v", res.Entries)
	}
	if _, ok := res.Entries[0].Fields["vector"]; ok {
		t.Error("vector must be projected away")
	}
}

func TestSearchList_OffsetPastEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0"),
			mock.RedisArray(mock.RedisString("app:Message:a")),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchList(context.Background(), "app:Message", "*", 5, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSearchList_FilteredQueryUsesFTSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "@workspace_id:{W1}"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	if _, err := s.SearchList(context.Background(), "app:Message", "@workspace_id:{W1}", 0, 10, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
