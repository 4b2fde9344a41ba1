/*
 * Copyright 2025 finch-orm.
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

package tests

import (
	"context"
	"sync"
	"testing"

	"github.com/finch-orm/finch"
	"github.com/finch-orm/finch/database"
	"github.com/finch-orm/finch/query"
	"github.com/finch-orm/finch/repository"
	"github.com/finch-orm/finch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID      int64     `bun:"id,pk,autoincrement" json:"id"`
	Name    string    `bun:"name,notnull" json:"name"`
	Members []*Member `bun:"rel:has-many,join:id=team_id" json:"members,omitempty"`
}

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID      int64         `bun:"id,pk,autoincrement" json:"id"`
	Name    string        `bun:"name,notnull,unique" json:"name"`
	Age     *int          `bun:"age" json:"age"`
	TeamID  int64         `bun:"team_id" json:"team_id"`
	Profile types.JSONMap `bun:"profile,type:text" json:"profile,omitempty"`
	Team    *Team         `bun:"rel:belongs-to,join:team_id=id" json:"team,omitempty"`
}

// Player keeps its name nullable so placement of NULL sort keys can be
// exercised on a text column.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID   int64   `bun:"id,pk,autoincrement" json:"id"`
	Name *string `bun:"name" json:"name,omitempty"`
	Age  int     `bun:"age" json:"age"`
}

func age(n int) *int { return &n }

var (
	setupOnce sync.Once
	setupErr  error
	testDB    *bun.DB
)

// setupDB initializes a shared in-memory SQLite database, runs migrations,
// and seeds two teams with four members:
//
//	teamA: member1(10), member2(20)
//	teamB: member3(30), member4(40)
func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	setupOnce.Do(func() {
		database.RegisteredModel(database.NewModelAdapter((*Team)(nil), 1))
		database.RegisteredModel(database.NewModelAdapter((*Member)(nil), 2))
		database.RegisteredModel(database.NewModelAdapter((*Player)(nil), 3))

		cfg := &database.Config{
			ConnectionConfig: database.ConnectionConfig{
				Type:   "sqlite",
				DBName: ":memory:",
			},
			DataMigrateConfig: database.DataMigrateConfig{
				EnableMigrateOnStartup: true,
			},
		}
		testDB, setupErr = database.InitDB(cfg)
		if setupErr != nil {
			return
		}
		setupErr = seed(context.Background())
	})
	require.NoError(t, setupErr)
	require.NotNil(t, testDB)
	return testDB
}

func seed(ctx context.Context) error {
	teamA := &Team{Name: "teamA"}
	teamB := &Team{Name: "teamB"}
	if err := finch.NewService[Team]().Save(ctx, teamA, teamB); err != nil {
		return err
	}
	members := []*Member{
		{Name: "member1", Age: age(10), TeamID: teamA.ID},
		{Name: "member2", Age: age(20), TeamID: teamA.ID},
		{Name: "member3", Age: age(30), TeamID: teamB.ID},
		{Name: "member4", Age: age(40), TeamID: teamB.ID},
	}
	return finch.NewService[Member]().Save(ctx, members...)
}

func memberNames(members []*Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

func TestEmptyCriteriaReturnsEverything(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	all, err := query.All[Member](ctx, db, query.From((*Member)(nil)))
	require.NoError(t, err)
	require.Len(t, all, 4)

	unrestricted, err := query.All[Member](ctx, db, query.From((*Member)(nil)).Where(query.True()))
	require.NoError(t, err)
	assert.Equal(t, memberNames(all), memberNames(unrestricted))
}

func TestConjunctionNarrowsResults(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	broad, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Gte("m.age", 20)))
	require.NoError(t, err)
	require.Len(t, broad, 3)

	narrow, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			Where(query.Gte("m.age", 20)).
			Where(query.Lte("m.age", 30)))
	require.NoError(t, err)
	require.Len(t, narrow, 2)

	broadSet := map[string]bool{}
	for _, m := range broad {
		broadSet[m.Name] = true
	}
	for _, m := range narrow {
		assert.True(t, broadSet[m.Name], "conjunction returned %s outside the broader result", m.Name)
	}
}

func TestOneCardinality(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	unique, err := query.One[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "member1")))
	require.NoError(t, err)
	require.NotNil(t, unique)
	assert.Equal(t, "member1", unique.Name)

	absent, err := query.One[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "nobody")))
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, err = query.One[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Gt("m.age", 15)))
	require.ErrorIs(t, err, query.ErrNonUnique)
}

func TestFirstUnderOrdering(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	oldest, err := query.First[Member](ctx, db,
		query.From((*Member)(nil)).
			Where(query.Gt("m.age", 15)).
			OrderBy(query.Desc("m.age")))
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, "member4", oldest.Name)

	none, err := query.First[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "nobody")))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLimitZeroSkipsRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	empty, err := query.All[Member](ctx, db, query.From((*Member)(nil)).Limit(0))
	require.NoError(t, err)
	assert.Empty(t, empty)

	one, err := query.One[Member](ctx, db, query.From((*Member)(nil)).Limit(0))
	require.NoError(t, err)
	assert.Nil(t, one)
}

func TestPaginationWindow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	window, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			OrderBy(query.Desc("m.name")).
			Offset(1).
			Limit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"member3", "member2"}, memberNames(window))
}

func TestNullPlacementInOrdering(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Member]()

	teamA, err := query.One[Team](ctx, db,
		query.From((*Team)(nil)).Where(query.Eq("t.name", "teamA")))
	require.NoError(t, err)
	require.NotNil(t, teamA)

	unknown := &Member{Name: "member5", Age: nil, TeamID: teamA.ID}
	require.NoError(t, svc.Save(ctx, unknown))
	defer func() { _ = svc.Delete(ctx, unknown.ID) }()

	last, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).OrderBy(query.Asc("m.age").NullsLast()))
	require.NoError(t, err)
	require.Len(t, last, 5)
	assert.Equal(t, "member5", last[4].Name)

	first, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).OrderBy(query.Asc("m.age").NullsFirst()))
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, "member5", first[0].Name)

	// unspecified placement defaults to last
	defaulted, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).OrderBy(query.Asc("m.age")))
	require.NoError(t, err)
	require.Len(t, defaulted, 5)
	assert.Equal(t, "member5", defaulted[4].Name)

	// null placement holds on a secondary sort key too: within teamA the
	// null-aged row sorts after its aged teammates
	multi, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			OrderBy(query.Desc("m.team_id"), query.Asc("m.age").NullsLast()))
	require.NoError(t, err)
	require.Len(t, multi, 5)
	names := make([]string, len(multi))
	for i, m := range multi {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"member3", "member4", "member1", "member2", "member5"}, names)
}

func TestNullNamePlacementInMultiKeyOrdering(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Player]()

	name := func(s string) *string { return &s }
	players := []*Player{
		{Name: nil, Age: 100},
		{Name: name("member5"), Age: 100},
		{Name: name("member6"), Age: 100},
	}
	require.NoError(t, svc.Save(ctx, players...))
	defer func() {
		for _, p := range players {
			_ = svc.Delete(ctx, p.ID)
		}
	}()

	rows, err := query.All[Player](ctx, db,
		query.From((*Player)(nil)).
			OrderBy(query.Desc("p.age"), query.Asc("p.name").NullsLast()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.NotNil(t, rows[0].Name)
	assert.Equal(t, "member5", *rows[0].Name)
	require.NotNil(t, rows[1].Name)
	assert.Equal(t, "member6", *rows[1].Name)
	assert.Nil(t, rows[2].Name)
}

func TestAggregateProjections(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	count, err := query.ScalarOne[int](ctx, db,
		query.From((*Member)(nil)).Select(query.Count()))
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, 4, *count)

	sum, err := query.ScalarOne[int](ctx, db,
		query.From((*Member)(nil)).Select(query.Sum("m.age")))
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 100, *sum)

	avg, err := query.ScalarOne[float64](ctx, db,
		query.From((*Member)(nil)).Select(query.Avg("m.age")))
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 25.0, *avg, 0.001)

	max, err := query.ScalarOne[int](ctx, db,
		query.From((*Member)(nil)).Select(query.Max("m.age")))
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.Equal(t, 40, *max)

	min, err := query.ScalarOne[int](ctx, db,
		query.From((*Member)(nil)).Select(query.Min("m.age")))
	require.NoError(t, err)
	require.NotNil(t, min)
	assert.Equal(t, 10, *min)
}

func TestAggregationInOneRow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rows, err := query.Tuples(ctx, db,
		query.From((*Member)(nil)).Select(
			query.As(query.Count(), "cnt"),
			query.As(query.Sum("m.age"), "total"),
			query.As(query.Avg("m.age"), "mean"),
			query.As(query.Max("m.age"), "oldest"),
			query.As(query.Min("m.age"), "youngest")))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	cnt, _ := row.Value("cnt")
	assert.EqualValues(t, 4, cnt)
	total, _ := row.Value("total")
	assert.EqualValues(t, 100, total)
	mean, _ := row.Value("mean")
	assert.InDelta(t, 25.0, mean, 1e-9)
	oldest, _ := row.Value("oldest")
	assert.EqualValues(t, 40, oldest)
	youngest, _ := row.Value("youngest")
	assert.EqualValues(t, 10, youngest)
}

func TestGroupingAndHaving(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	rows, err := query.Tuples(ctx, db,
		query.From((*Member)(nil)).
			Join("Team").
			Select(query.ColAs("t.name", "team_name"), query.As(query.Sum("m.age"), "total")).
			GroupBy("t.name").
			Having(query.Gte("sum(m.age)", 50)).
			OrderBy(query.Asc("t.name")))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	team, ok := rows[0].Value("team_name")
	require.True(t, ok)
	assert.Equal(t, "teamB", team)
	total, ok := rows[0].Value("total")
	require.True(t, ok)
	assert.EqualValues(t, 70, total)
}

func TestJoinOnDiffersFromWhere(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	// A filter in ON restricts only the joined side, the outer join still
	// returns every member.
	onFiltered, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			LeftJoin("Team").On(query.Eq("t.name", "teamA")))
	require.NoError(t, err)
	assert.Len(t, onFiltered, 4)

	// The same filter in WHERE removes the rows whose joined side was
	// nulled out.
	whereFiltered, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			LeftJoin("Team").
			Where(query.Eq("t.name", "teamA")))
	require.NoError(t, err)
	assert.Equal(t, []string{"member1", "member2"}, memberNames(whereFiltered))
}

func TestFetchJoinMaterializesRelation(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	plain, err := query.One[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "member1")))
	require.NoError(t, err)
	require.NotNil(t, plain)
	assert.False(t, query.Loaded(plain, "Team"))

	fetched, err := query.One[Member](ctx, db,
		query.From((*Member)(nil)).
			LeftJoin("Team").Fetch().
			Where(query.Eq("m.name", "member1")))
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.True(t, query.Loaded(fetched, "Team"))
	assert.Equal(t, "teamA", fetched.Team.Name)
}

func TestFetchJoinRejectsOnFilter(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			LeftJoin("Team").On(query.Eq("t.name", "teamA")).Fetch())
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)
}

func TestFetchJoinRequiresLeftJoin(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Join("Team").Fetch())
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)
}

func TestThetaJoinRequiresOn(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).JoinModel(query.InnerJoin, (*Team)(nil)))
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)

	joined, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			JoinModel(query.InnerJoin, (*Team)(nil)).
			On(query.EqCol("m.team_id", "t.id")).
			Where(query.Eq("t.name", "teamB")).
			OrderBy(query.Asc("m.name")))
	require.NoError(t, err)
	assert.Equal(t, []string{"member3", "member4"}, memberNames(joined))
}

func TestScalarSubqueryInPredicate(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	maxAge := query.From((*Member)(nil)).Select(query.Max("m.age"))
	oldest, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.age", maxAge)))
	require.NoError(t, err)
	require.Len(t, oldest, 1)
	assert.Equal(t, "member4", oldest[0].Name)
}

func TestSubqueryMembership(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	teamBAges := query.From((*Member)(nil)).
		Join("Team").
		Select(query.Col("m.age")).
		Where(query.Eq("t.name", "teamB"))
	matched, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			Where(query.In("m.age", teamBAges)).
			OrderBy(query.Asc("m.name")))
	require.NoError(t, err)
	assert.Equal(t, []string{"member3", "member4"}, memberNames(matched))
}

func TestScalarSubqueryInProjection(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	maxAge := query.From((*Member)(nil)).Select(query.Max("m.age"))
	rows, err := query.Tuples(ctx, db,
		query.From((*Member)(nil)).
			Select(query.Col("m.name"), query.As(maxAge, "max_age")).
			Where(query.Eq("m.name", "member1")))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	v, ok := rows[0].Value("max_age")
	require.True(t, ok)
	assert.EqualValues(t, 40, v)
}

func TestCaseExpressionProjection(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	bracket := query.As(query.Case().
		When(query.Lt("m.age", 25), "junior").
		Else("senior"), "bracket")

	rows, err := query.Tuples(ctx, db,
		query.From((*Member)(nil)).
			Select(query.ColAs("m.name", "name"), bracket).
			OrderBy(query.Asc("m.age")))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	brackets := make([]string, len(rows))
	for i, row := range rows {
		v, ok := row.Value("bracket")
		require.True(t, ok)
		brackets[i] = v.(string)
	}
	assert.Equal(t, []string{"junior", "junior", "senior", "senior"}, brackets)
}

func TestOrderByCaseExpression(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	pinned := query.Case().
		When(query.Eq("m.name", "member2"), 0).
		Else(1)
	members, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).
			OrderBy(query.Asc(pinned), query.Asc("m.name")))
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, "member2", members[0].Name)
}

func TestCaseExpressionRequiresElse(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := query.Tuples(ctx, db,
		query.From((*Member)(nil)).
			Select(query.Col("m.name"), query.Case().When(query.Lt("m.age", 25), "junior")))
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)
}

type memberSearch struct {
	Name     string
	AgeGoe   *int
	AgeLoe   *int
	TeamName string
}

func searchMembers(ctx context.Context, db *bun.DB, c memberSearch) ([]*Member, error) {
	b := query.NewBuilder()
	if c.Name != "" {
		b.And(query.Eq("m.name", c.Name))
	}
	if c.AgeGoe != nil {
		b.And(query.Gte("m.age", *c.AgeGoe))
	}
	if c.AgeLoe != nil {
		b.And(query.Lte("m.age", *c.AgeLoe))
	}
	d := query.From((*Member)(nil))
	if c.TeamName != "" {
		d = d.Join("Team").Where(query.Eq("t.name", c.TeamName))
	}
	return query.All[Member](ctx, db, d.Where(b.Build()).OrderBy(query.Asc("m.name")))
}

func TestDynamicCriteriaSearch(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	hit, err := searchMembers(ctx, db, memberSearch{
		AgeGoe:   age(35),
		AgeLoe:   age(40),
		TeamName: "teamB",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"member4"}, memberNames(hit))

	everyone, err := searchMembers(ctx, db, memberSearch{})
	require.NoError(t, err)
	assert.Len(t, everyone, 4)
}

func TestLikeEscapesUserInput(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Member]()

	tricky := &Member{Name: "100%_done", Age: age(99), TeamID: 1}
	require.NoError(t, svc.Save(ctx, tricky))
	defer func() { _ = svc.Delete(ctx, tricky.ID) }()

	// literal percent must not act as a wildcard
	hits, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Contains("m.name", "0%_d")))
	require.NoError(t, err)
	assert.Equal(t, []string{"100%_done"}, memberNames(hits))

	none, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Contains("m.name", "0%x")))
	require.NoError(t, err)
	assert.Empty(t, none)

	// raw Like keeps wildcards live
	wild, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Like("m.name", "member%")))
	require.NoError(t, err)
	assert.Len(t, wild, 4)
}

type memberFields struct {
	Name string
	Age  int
}

type memberRecord struct {
	name string
	age  int
}

func (r *memberRecord) SetName(name string) { r.name = name }
func (r *memberRecord) SetAge(age int)      { r.age = age }

type memberView struct {
	label string
	age   int
}

func TestProjectionBindersAgree(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	d := func() *query.Descriptor {
		return query.From((*Member)(nil)).
			Select(query.Col("m.name"), query.Col("m.age")).
			Where(query.Eq("m.name", "member3"))
	}

	byField, err := query.Structs[memberFields](ctx, db, d(), query.BindFields[memberFields]())
	require.NoError(t, err)
	require.Len(t, byField, 1)
	assert.Equal(t, memberFields{Name: "member3", Age: 30}, byField[0])

	bySetter, err := query.Structs[memberRecord](ctx, db, d(), query.BindSetters[memberRecord]())
	require.NoError(t, err)
	require.Len(t, bySetter, 1)
	assert.Equal(t, memberRecord{name: "member3", age: 30}, bySetter[0])

	byCtor, err := query.Structs[memberView](ctx, db, d(),
		query.BindConstructor[memberView](func(name string, age int) memberView {
			return memberView{label: name, age: age}
		}))
	require.NoError(t, err)
	require.Len(t, byCtor, 1)
	assert.Equal(t, memberView{label: "member3", age: 30}, byCtor[0])
}

func TestBinderValidationFailsBeforeExecution(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	type unrelated struct {
		Salary int
	}
	_, err := query.Structs[unrelated](ctx, db,
		query.From((*Member)(nil)).Select(query.Col("m.name")),
		query.BindFields[unrelated]())
	require.Error(t, err)
}

func TestUnknownColumnRejected(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.salary", 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)

	_, err = query.All[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("x.name", "member1")))
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrComposition)
}

func TestRepositorySearchAndPage(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repository.NewRepository[Member](db)

	found, err := repo.Find(ctx, query.From((*Member)(nil)).Where(query.Gte("m.age", 30)))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	one, err := repo.FindOne(ctx, query.From((*Member)(nil)).Where(query.Eq("m.name", "member2")))
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "member2", one.Name)

	first, err := repo.FindFirst(ctx,
		query.From((*Member)(nil)).OrderBy(query.Desc("m.age")))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "member4", first.Name)

	listed, err := repo.List(ctx, query.Lt("m.age", 25))
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	page, err := repo.Page(ctx, types.NewPageRequest(2, 2, nil, []query.Sort{query.Desc("m.name")}))
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, []string{"member2", "member1"}, memberNames(page.Items))
}

func TestServiceCrudLifecycle(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Member]()

	extra := &Member{Name: "member9", Age: age(55), TeamID: 1}
	require.NoError(t, svc.Save(ctx, extra))
	require.NotZero(t, extra.ID)

	got, err := svc.Get(ctx, extra.ID)
	require.NoError(t, err)
	assert.Equal(t, "member9", got.Name)

	extra.Age = age(56)
	require.NoError(t, svc.Update(ctx, extra))

	updated, err := svc.FindOne(ctx,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "member9")))
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 56, *updated.Age)

	require.NoError(t, svc.Delete(ctx, extra.ID))
	gone, err := svc.FindOne(ctx,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "member9")))
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestConstraintClassification(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Member]()

	dup := &Member{Name: "member1", Age: age(10), TeamID: 1}
	err := svc.Save(ctx, dup)
	require.Error(t, err)
	assert.True(t, database.IsDuplicateKeyError(err))
	assert.Equal(t, database.ConstraintDuplicateKey, database.ClassifyError(err))

	_, err = db.ExecContext(ctx, "SELECT 1 FROM absent_table")
	require.Error(t, err)
	assert.True(t, database.IsMissingTableError(err))

	assert.Equal(t, database.ConstraintUnknown, database.ClassifyError(nil))
}

func TestJSONColumnRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	svc := finch.NewService[Member]()

	withProfile := &Member{
		Name:    "member7",
		Age:     age(33),
		TeamID:  1,
		Profile: types.JSONMap{"city": "london", "rank": float64(3)},
	}
	require.NoError(t, svc.Save(ctx, withProfile))
	defer func() { _ = svc.Delete(ctx, withProfile.ID) }()

	got, err := query.One[Member](ctx, db,
		query.From((*Member)(nil)).Where(query.Eq("m.name", "member7")))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "london", got.Profile["city"])
	assert.EqualValues(t, 3, got.Profile["rank"])
}

func TestMemoryDatabaseKeepsOneConnection(t *testing.T) {
	db := setupDB(t)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
