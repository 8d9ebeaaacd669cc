// Command xidachsim plays bot-only Xì Dách rounds against the engine and
// prints each settlement.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"

	"github.com/pterm/pterm"
)

func main() {
	roundsFlag := flag.Int("rounds", 10, "rounds to play")
	seatsFlag := flag.Int("seats", 4, "bots at the table (2-10)")
	seedFlag := flag.Int64("seed", 1, "RNG seed for the shoe and the bots")
	personasFlag := flag.String("personas", "", "optional persona JSON file")
	verboseFlag := flag.Bool("v", false, "show bot decisions")
	flag.Parse()

	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)
	if !*verboseFlag {
		log.SetOutput(io.Discard)
	}

	registry := npc.NewDefaultRegistry()
	if *personasFlag != "" {
		if err := registry.LoadFromFile(*personasFlag); err != nil {
			logger.Error("load personas", "path", *personasFlag, "err", err)
			os.Exit(1)
		}
	}

	sim, err := newSimulator(*seatsFlag, *seedFlag, registry)
	if err != nil {
		logger.Error("setup", "err", err)
		os.Exit(1)
	}
	pterm.DefaultHeader.WithFullWidth().Println("Xì Dách simulator")
	pterm.Info.Printfln("%d bots, %d rounds, seed %d", *seatsFlag, *roundsFlag, *seedFlag)

	failures := 0
	for i := 0; i < *roundsFlag; i++ {
		report, err := sim.playRound()
		if err != nil {
			pterm.Warning.Printfln("stopping after %d rounds: %v", i, err)
			break
		}
		printRound(report)
		if !zeroSum(report.Result) {
			failures++
			logger.Error("round is not zero-sum", "round", report.Result.Round)
		}
		if !report.Replays {
			failures++
			logger.Error("round does not replay", "round", report.Result.Round)
		}
	}

	printBalances(sim.game.Snapshot())
	if failures > 0 {
		pterm.Error.Printfln("%d checks failed", failures)
		os.Exit(1)
	}
	pterm.Success.Println("every round was zero-sum and replayed exactly")
}

func printRound(report *roundReport) {
	rr := report.Result
	title := fmt.Sprintf("Round %d", rr.Round)
	if report.Forced > 0 {
		title += fmt.Sprintf(" (%d forced by timer)", report.Forced)
	}
	pterm.DefaultSection.Println(title)

	data := pterm.TableData{{"Seat", "Name", "Cards", "Hand", "Bet", "Result", "Payout", "Balance"}}
	for _, s := range rr.Seats {
		name := s.Name
		if s.IsHost {
			name = pterm.LightYellow(name + " (cái)")
		}
		cards := make([]string, 0, len(s.Cards))
		for _, c := range s.Cards {
			cards = append(cards, c.String())
		}
		data = append(data, []string{
			strconv.Itoa(s.Seat),
			name,
			strings.Join(cards, " "),
			fmt.Sprintf("%s %d", s.Hand.Tier, s.Hand.Score),
			strconv.FormatInt(s.Bet, 10),
			s.Result.String(),
			colorDelta(s.BalanceAfter - s.BalanceBefore),
			strconv.FormatInt(s.BalanceAfter, 10),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
	for _, ev := range rr.Evictions {
		pterm.Warning.Printfln("seat %d left the table (%s)", ev.Seat, ev.Reason)
	}
}

func printBalances(snap xidach.Snapshot) {
	players := append([]xidach.PlayerSnapshot(nil), snap.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].Balance > players[j].Balance })

	pterm.DefaultSection.Println("Final balances")
	data := pterm.TableData{{"Name", "Seat", "Balance", "Net"}}
	for _, p := range players {
		data = append(data, []string{
			p.Name,
			strconv.Itoa(p.Seat),
			strconv.FormatInt(p.Balance, 10),
			colorDelta(p.Balance - xidach.DefaultStartingBalance),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}

func colorDelta(v int64) string {
	switch {
	case v > 0:
		return pterm.LightGreen("+" + strconv.FormatInt(v, 10))
	case v < 0:
		return pterm.LightRed(strconv.FormatInt(v, 10))
	}
	return "0"
}
