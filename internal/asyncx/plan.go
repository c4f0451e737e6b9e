package asyncx

import "github.com/sharpts/sharpts/internal/tast"

// bodyPlan is the pre-emission analysis of one async/generator body: which
// locals move into state-machine fields, how many suspension sites the
// resume-dispatch table needs, and which try regions contain a suspension
// point (those are lowered with an explicit exception slot instead of a
// native exception-region frame).
type bodyPlan struct {
	hoisted      []*tast.VarDecl
	suspendCount int
	// trySlots maps a suspending TryRegion's ID to its dense exception-slot
	// ordinal, assigned in first-seen order.
	trySlots map[int]int
}

func (p *bodyPlan) tryCount() int { return len(p.trySlots) }

// analyzeBody runs the liveness pass over fn's body. A local is hoisted to
// a state-machine field only when it is read after some suspension point;
// everything else stays an ordinary move_next local. Parameters are always
// hoisted: move_next takes no parameters, so an argument's value can only
// reach the body through a state-object field seeded by the starter.
func analyzeBody(fn *tast.FunctionPlan) *bodyPlan {
	lv := &liveness{
		firstSuspend: -1,
		lastRead:     make(map[*tast.VarDecl]int),
		plan:         &bodyPlan{trySlots: make(map[int]int)},
	}
	lv.walkStmts(fn.Body)

	plan := lv.plan
	plan.hoisted = append(plan.hoisted, fn.Params...)
	hoistedSet := make(map[*tast.VarDecl]bool, len(fn.Params))
	for _, p := range fn.Params {
		hoistedSet[p] = true
	}
	for _, d := range lv.declOrder {
		if hoistedSet[d] {
			continue
		}
		if lv.firstSuspend >= 0 && lv.lastRead[d] > lv.firstSuspend {
			plan.hoisted = append(plan.hoisted, d)
			hoistedSet[d] = true
		}
	}
	return plan
}

// liveness performs a single linear walk over the body, numbering every
// visited node. A read positioned past the first suspension means the
// variable's value must survive a resumption. Loops need one adjustment: a
// read textually before a suspension inside the same loop is still a read
// after it via the back edge, so once a loop turns out to contain a
// suspension, every read inside it is bumped to the loop's end position.
type liveness struct {
	pos          int
	firstSuspend int
	lastRead     map[*tast.VarDecl]int
	declOrder    []*tast.VarDecl
	reads        []readEvent
	tryStack     []*tast.TryRegion
	plan         *bodyPlan
}

type readEvent struct {
	decl *tast.VarDecl
	pos  int
}

func (lv *liveness) tick() int {
	lv.pos++
	return lv.pos
}

func (lv *liveness) suspend() {
	p := lv.tick()
	if lv.firstSuspend < 0 {
		lv.firstSuspend = p
	}
	lv.plan.suspendCount++
	for _, tr := range lv.tryStack {
		if _, seen := lv.plan.trySlots[tr.ID]; !seen {
			lv.plan.trySlots[tr.ID] = len(lv.plan.trySlots)
		}
	}
}

func (lv *liveness) read(d *tast.VarDecl) {
	p := lv.tick()
	lv.reads = append(lv.reads, readEvent{decl: d, pos: p})
	if p > lv.lastRead[d] {
		lv.lastRead[d] = p
	}
}

func (lv *liveness) declare(d *tast.VarDecl) {
	lv.declOrder = append(lv.declOrder, d)
}

func (lv *liveness) walkStmts(stmts []tast.Stmt) {
	for _, s := range stmts {
		lv.walkStmt(s)
	}
}

func (lv *liveness) walkStmt(s tast.Stmt) {
	if s == nil {
		return
	}
	lv.tick()
	switch n := s.(type) {
	case *tast.VarDecl:
		if n.Init != nil {
			lv.walkExpr(n.Init)
		}
		lv.declare(n)
	case *tast.ExprStmt:
		lv.walkExpr(n.X)
	case *tast.Block:
		lv.walkStmts(n.Stmts)
	case *tast.If:
		lv.walkExpr(n.Cond)
		lv.walkStmt(n.Then)
		lv.walkStmt(n.Else)
	case *tast.Loop:
		start := lv.pos
		suspendsBefore := lv.plan.suspendCount
		if n.Binding != nil {
			lv.declare(n.Binding)
		}
		if n.Init != nil {
			lv.walkStmt(n.Init)
		}
		lv.walkExpr(n.Cond)
		lv.walkExpr(n.Post)
		lv.walkExpr(n.Iterable)
		lv.walkStmt(n.Body)
		if lv.plan.suspendCount > suspendsBefore {
			end := lv.pos
			for _, r := range lv.reads {
				if r.pos > start && end > lv.lastRead[r.decl] {
					lv.lastRead[r.decl] = end
				}
			}
		}
	case *tast.Return:
		lv.walkExpr(n.Value)
	case *tast.Throw:
		lv.walkExpr(n.Value)
	case *tast.TryRegion:
		lv.tryStack = append(lv.tryStack, n)
		lv.walkStmt(n.Body)
		lv.tryStack = lv.tryStack[:len(lv.tryStack)-1]
		if n.CatchParam != nil {
			lv.declare(n.CatchParam)
		}
		lv.walkStmt(n.CatchBody)
		lv.walkStmt(n.FinallyBody)
	}
}

func (lv *liveness) walkExpr(x tast.Expr) {
	if x == nil {
		return
	}
	lv.tick()
	switch n := x.(type) {
	case *tast.Ident:
		if n.Decl != nil {
			lv.read(n.Decl)
		}
	case *tast.Binary:
		lv.walkExpr(n.Left)
		lv.walkExpr(n.Right)
	case *tast.Unary:
		lv.walkExpr(n.Operand)
	case *tast.InstanceOf:
		lv.walkExpr(n.Value)
	case *tast.Assign:
		// A plain assignment only writes its target; the value being
		// replaced never crosses the suspension. Compound assignment reads
		// the target first, so it counts like any other read.
		if n.Op == "" {
			if _, isIdent := n.Target.(*tast.Ident); !isIdent {
				lv.walkExpr(n.Target)
			}
		} else {
			lv.walkExpr(n.Target)
		}
		lv.walkExpr(n.Value)
	case *tast.Call:
		lv.walkExpr(n.Callee)
		for _, a := range n.Args {
			lv.walkExpr(a)
		}
	case *tast.Member:
		lv.walkExpr(n.Object)
	case *tast.Index:
		lv.walkExpr(n.Object)
		lv.walkExpr(n.Key)
	case *tast.FunctionExpr:
		// A closure value can outlive every suspension in this machine, so
		// its captures are pinned to state-machine fields unconditionally.
		markCapturedReads(n.Plan, lv)
	case *tast.Await:
		lv.walkExpr(n.Operand)
		lv.suspend()
	case *tast.Yield:
		lv.walkExpr(n.Operand)
		lv.suspend()
	case *tast.ArrayLit:
		for _, el := range n.Elements {
			lv.walkExpr(el)
		}
	case *tast.ObjectLit:
		for _, p := range n.Props {
			lv.walkExpr(p.Value)
		}
	case *tast.TemplateLit:
		for _, p := range n.Parts {
			lv.walkExpr(p)
		}
	}
}

// markCapturedReads records every outer variable an inner closure
// references as read at the largest possible position.
func markCapturedReads(inner *tast.FunctionPlan, lv *liveness) {
	own := make(map[*tast.VarDecl]bool, len(inner.Params))
	for _, p := range inner.Params {
		own[p] = true
	}
	walkStmts(inner.Body, func(s tast.Stmt) {
		if d, ok := s.(*tast.VarDecl); ok {
			own[d] = true
		}
	}, func(x tast.Expr) {
		if id, ok := x.(*tast.Ident); ok && id.Decl != nil && !own[id.Decl] {
			lv.lastRead[id.Decl] = int(^uint(0) >> 1)
		}
	})
}
