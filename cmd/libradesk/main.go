// Command libradesk is the library administration dashboard for the
// terminal.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const usageText = `usage: libradesk <command> [flags]

Session:
  login                     sign in and store the token
  logout                    sign out
  whoami                    show the signed-in admin

Catalog:
  books                     list books (-search, -sort, -page, -per-page)
  browse                    interactive book list driven from stdin
  book add|edit|delete      manage one book
  categories                list categories

Reports:
  stats                     income and top sellers (-preset or -from/-to)
  loans                     borrowed books

Administration:
  coupons list|add          discount codes
  wallet users|history|credit|account|topup
  notifications list|delete

  version                   print version information

Common flags: -config FILE, -o table|json|yaml, -debug
`

func usage() { fmt.Fprint(os.Stderr, usageText) }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	commands := map[string]func([]string) error{
		"login":         runLogin,
		"logout":        runLogout,
		"whoami":        runWhoami,
		"books":         runBooks,
		"browse":        runBrowse,
		"book":          runBook,
		"categories":    runCategories,
		"stats":         runStats,
		"loans":         runLoans,
		"coupons":       runCoupons,
		"wallet":        runWallet,
		"notifications": runNotifications,
		"version":       runVersion,
	}
	switch cmd {
	case "help", "-h", "--help":
		usage()
		return
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err := run(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "libradesk %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// subcommand splits "group verb args..." for the grouped commands.
func subcommand(group string, args []string, verbs ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s needs one of %v", group, verbs)
	}
	for _, v := range verbs {
		if args[0] == v {
			return v, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown %s command %q (want one of %v)", group, args[0], verbs)
}
