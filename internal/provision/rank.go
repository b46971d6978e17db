package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// mmrByTier - примерное соответствие rank_tier OpenDota и MMR,
// строка = медаль (Herald..Divine), столбец = звезда.
var mmrByTier = [...][7]int{
	{154, 308, 462, 616, 770, 770, 770},
	{924, 1078, 1232, 1386, 1540, 1540, 1540},
	{1694, 1848, 2002, 2156, 2310, 2310, 2310},
	{2464, 2618, 2772, 2926, 3080, 3080, 3080},
	{3234, 3388, 3542, 3696, 3850, 3850, 3850},
	{4004, 4158, 4312, 4466, 4620, 4620, 4620},
	{4820, 5020, 5220, 5420, 5620, 5620, 5620},
}

// RankClient читает публичный профиль игрока из OpenDota.
type RankClient struct {
	baseURL string
	http    *http.Client
}

func NewRankClient(baseURL string) *RankClient {
	return &RankClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// MMR возвращает расчётный MMR по rank_tier игрока. Для профиля без
// откалиброванного ранга возвращается 0.
func (c *RankClient) MMR(ctx context.Context, dotaID int64) (int, error) {
	path := c.baseURL + "/api/players/" + strconv.FormatInt(dotaID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("opendota: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("opendota: status %d: %s", resp.StatusCode, msg)
	}

	var profile struct {
		RankTier *int `json:"rank_tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return 0, fmt.Errorf("opendota: decode: %w", err)
	}
	if profile.RankTier == nil || *profile.RankTier == 0 {
		return 0, nil
	}
	return tierToMMR(*profile.RankTier), nil
}

// tierToMMR раскладывает rank_tier на медаль и звезду (51 = Legend 1).
func tierToMMR(tier int) int {
	medal := tier/10 - 1
	star := tier%10 - 1
	if medal < 0 || medal >= len(mmrByTier) {
		return 0
	}
	if star < 0 {
		star = 0
	}
	if star > 6 {
		star = 6
	}
	return mmrByTier[medal][star]
}
